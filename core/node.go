package core

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"auctiond/core/events"
	"auctiond/core/state"
	"auctiond/core/types"
	"auctiond/native/auction"
	"auctiond/native/token"
	"auctiond/observability/metrics"
	"auctiond/storage"
)

// StoredEvent is an engine event annotated with its position in the node's
// append-only event log.
type StoredEvent struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Node owns the settlement database and runs every auction transition as an
// atomic unit: each call stages its writes on a storage overlay and commits
// only after the engine reports success. A failed transition leaves the base
// database and the event log untouched.
type Node struct {
	db               storage.Database
	upgradeAuthority [20]byte
	logger           *slog.Logger
	metrics          *metrics.AuctionMetrics
	nowFn            func() int64

	stateMu sync.Mutex

	eventMu  sync.RWMutex
	eventSeq uint64
	events   []StoredEvent

	escrowMu     sync.Mutex
	escrowByName map[string]uint64
}

// NewNode creates a node over db. The upgrade authority is the only identity
// allowed to bootstrap or rotate the administrator.
func NewNode(db storage.Database, upgradeAuthority [20]byte) *Node {
	return &Node{
		db:               db,
		upgradeAuthority: upgradeAuthority,
		logger:           slog.Default(),
		metrics:          metrics.Auction(),
		nowFn:            func() int64 { return time.Now().Unix() },
		escrowByName:     make(map[string]uint64),
	}
}

// SetLogger overrides the node's logger. Passing nil restores the default.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

// SetNowFunc overrides the time source forwarded to the engine, primarily for
// deterministic tests.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
}

// Now reports the current time according to the node's clock source. Views
// derived from auction records must use this clock, not the wall clock, so
// they agree with the transitions.
func (n *Node) Now() int64 {
	return n.nowFn()
}

// bufferEmitter collects engine events during a transition so the node can
// append them to its log only once the transition commits.
type bufferEmitter struct {
	collected []*types.Event
}

func (b *bufferEmitter) Emit(evt events.Event) {
	payload, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	if event := payload.Event(); event != nil {
		b.collected = append(b.collected, event)
	}
}

func (b *bufferEmitter) has(eventType string) bool {
	for _, evt := range b.collected {
		if evt.Type == eventType {
			return true
		}
	}
	return false
}

func (n *Node) newAuctionEngine(manager *state.Manager, emitter events.Emitter) *auction.Engine {
	ledger := token.NewLedger()
	ledger.SetState(manager)
	engine := auction.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(ledger)
	engine.SetUpgradeAuthority(n.upgradeAuthority)
	engine.SetNowFunc(n.nowFn)
	engine.SetEmitter(emitter)
	return engine
}

// apply runs fn against a fresh engine whose writes are staged on an overlay.
// On success the overlay is committed and the buffered events are sequenced
// into the node log; on failure every staged effect is discarded.
func (n *Node) apply(fn func(*auction.Engine) error) (*bufferEmitter, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	overlay := storage.NewOverlay(n.db)
	buf := &bufferEmitter{}
	engine := n.newAuctionEngine(state.NewManager(overlay), buf)
	if err := fn(engine); err != nil {
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, err
	}
	n.record(buf.collected)
	return buf, nil
}

func (n *Node) record(collected []*types.Event) {
	if len(collected) == 0 {
		return
	}
	n.eventMu.Lock()
	defer n.eventMu.Unlock()
	for _, evt := range collected {
		n.eventSeq++
		attrs := make(map[string]string, len(evt.Attributes))
		for k, v := range evt.Attributes {
			attrs[k] = v
		}
		n.events = append(n.events, StoredEvent{
			Sequence:   n.eventSeq,
			Type:       evt.Type,
			Attributes: attrs,
		})
		n.logger.Info("auction event", "type", evt.Type, "sequence", n.eventSeq)
	}
}

// Events returns up to limit log entries with a sequence greater than after.
// A non-positive limit returns everything past the cursor.
func (n *Node) Events(after uint64, limit int) []StoredEvent {
	n.eventMu.RLock()
	defer n.eventMu.RUnlock()
	out := make([]StoredEvent, 0)
	for _, evt := range n.events {
		if evt.Sequence <= after {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// AuctionBootstrap creates the administrator singleton.
func (n *Node) AuctionBootstrap(caller, adminKey [20]byte) error {
	_, err := n.apply(func(engine *auction.Engine) error {
		return engine.Bootstrap(caller, adminKey)
	})
	return err
}

// AuctionRotateAdmin replaces the registered administrator.
func (n *Node) AuctionRotateAdmin(caller, adminKey [20]byte) error {
	_, err := n.apply(func(engine *auction.Engine) error {
		return engine.RotateAdmin(caller, adminKey)
	})
	return err
}

// AuctionInitialize opens a new auction and funds its escrow.
func (n *Node) AuctionInitialize(caller, callerTokenAccount [20]byte, name string, price, priceIncrement uint64, startTime, endTime int64) (*auction.Auction, error) {
	var opened *auction.Auction
	_, err := n.apply(func(engine *auction.Engine) error {
		a, err := engine.Initialize(caller, callerTokenAccount, name, price, priceIncrement, startTime, endTime)
		if err != nil {
			return err
		}
		opened = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.metrics.ObserveAuctionOpened()
	n.trackEscrow(name, opened.Amount)
	return opened, nil
}

// AuctionBid settles a bid against an existing payout token account.
func (n *Node) AuctionBid(name string, caller, callerTokenAccount [20]byte, amount uint64) (*auction.Auction, error) {
	return n.settle(name, func(engine *auction.Engine) (*auction.Auction, error) {
		return engine.Bid(name, caller, callerTokenAccount, amount)
	})
}

// AuctionBidCreate settles a bid, provisioning the bidder's associated token
// account first when it does not exist yet.
func (n *Node) AuctionBidCreate(name string, caller [20]byte, amount uint64) (*auction.Auction, error) {
	return n.settle(name, func(engine *auction.Engine) (*auction.Auction, error) {
		return engine.BidCreate(name, caller, amount)
	})
}

func (n *Node) settle(name string, fn func(*auction.Engine) (*auction.Auction, error)) (*auction.Auction, error) {
	var settled *auction.Auction
	buf, err := n.apply(func(engine *auction.Engine) error {
		a, err := fn(engine)
		if err != nil {
			return err
		}
		settled = a
		return nil
	})
	if err != nil {
		n.metrics.ObserveBidRejected(rejectionReason(err))
		return nil, err
	}
	n.metrics.ObserveBidAccepted()
	if buf.has(auction.EventTypeExtended) {
		n.metrics.ObserveExtension()
	}
	n.trackEscrow(name, settled.Amount)
	return settled, nil
}

// AuctionClose finalises an ended auction and destroys its record.
func (n *Node) AuctionClose(name string, caller, callerTokenAccount [20]byte) error {
	_, err := n.apply(func(engine *auction.Engine) error {
		return engine.Close(name, caller, callerTokenAccount)
	})
	if err != nil {
		return err
	}
	n.metrics.ObserveAuctionClosed()
	n.releaseEscrow(name)
	return nil
}

// trackEscrow records the escrow balance of an open auction. The escrow
// account holds the current best bid, so the record's amount is the balance.
func (n *Node) trackEscrow(name string, amount uint64) {
	n.escrowMu.Lock()
	defer n.escrowMu.Unlock()
	n.escrowByName[name] = amount
	n.metrics.SetEscrowLocked(n.escrowTotal())
}

func (n *Node) releaseEscrow(name string) {
	n.escrowMu.Lock()
	defer n.escrowMu.Unlock()
	delete(n.escrowByName, name)
	n.metrics.SetEscrowLocked(n.escrowTotal())
}

// escrowTotal sums the tracked balances. Caller holds escrowMu.
func (n *Node) escrowTotal() uint64 {
	var total uint64
	for _, amount := range n.escrowByName {
		total += amount
	}
	return total
}

// EscrowLocked reports the asset units held across all escrow accounts of
// auctions opened since the node started.
func (n *Node) EscrowLocked() uint64 {
	n.escrowMu.Lock()
	defer n.escrowMu.Unlock()
	return n.escrowTotal()
}

// AuctionGet loads the auction record stored under name without staging a
// transition.
func (n *Node) AuctionGet(name string) (*auction.Auction, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	engine := n.newAuctionEngine(state.NewManager(n.db), events.NoopEmitter{})
	return engine.Get(name)
}

// AdminAddress reports the currently registered administrator.
func (n *Node) AdminAddress() ([20]byte, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	settings, ok, err := state.NewManager(n.db).AdminSettingsGet()
	if err != nil || !ok {
		return [20]byte{}, ok, err
	}
	return settings.AdminKey, true, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound):
		return "not_found"
	case errors.Is(err, auction.ErrAuctionNotStarted):
		return "not_started"
	case errors.Is(err, auction.ErrAuctionEnded):
		return "ended"
	case errors.Is(err, auction.ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, auction.ErrInvalidCalculation):
		return "invalid_calculation"
	case errors.Is(err, token.ErrInsufficient):
		return "insufficient_funds"
	case errors.Is(err, token.ErrAccountNotFound):
		return "missing_token_account"
	default:
		return "other"
	}
}
