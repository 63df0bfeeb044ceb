package auction

import (
	"errors"
	"fmt"
	"time"

	"auctiond/core/events"
	"auctiond/core/types"
	"auctiond/native/token"
)

// RecordReserve is the native-currency deposit locked when an auction record
// is created and refunded to the closing administrator when the record is
// destroyed.
const RecordReserve uint64 = 3_000_000

var errNilState = errors.New("auction engine: state not configured")

type engineState interface {
	AdminSettingsGet() (*AdminSettings, bool, error)
	AdminSettingsPut(*AdminSettings) error
	AuctionGet(name string) (*Auction, bool, error)
	AuctionPut(*Auction) error
	AuctionDelete(name string) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type tokenLedger interface {
	Exists(addr [20]byte) (bool, error)
	BalanceOf(addr [20]byte) (uint64, error)
	ReserveOf(addr [20]byte) (uint64, error)
	CreateAccount(addr, authority, payer [20]byte) error
	Transfer(from, to [20]byte, authority token.Authority, amount uint64) error
	CloseAccount(addr, destination [20]byte, authority token.Authority) error
}

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

// Engine wires the auction settlement logic with external state, the token
// ledger and event emitters. Every exported transition is a pure synchronous
// state-transition function: the caller provides an externally-atomic unit of
// work, the engine never compensates partial failures itself.
type Engine struct {
	state            engineState
	ledger           tokenLedger
	emitter          events.Emitter
	upgradeAuthority [20]byte
	nowFn            func() int64
}

// NewEngine creates an auction engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger the engine settles through.
func (e *Engine) SetLedger(ledger tokenLedger) { e.ledger = ledger }

// SetUpgradeAuthority registers the identity entitled to bootstrap and rotate
// the administrator. On the host runtime this is the program's upgrade
// authority; here it is injected at node construction.
func (e *Engine) SetUpgradeAuthority(addr [20]byte) { e.upgradeAuthority = addr }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) transferNative(from, to [20]byte, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance < amount {
		return fmt.Errorf("auction: insufficient native balance")
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc.Balance -= amount
	toAcc.Balance += amount
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

func (e *Engine) requireUpgradeAuthority(caller [20]byte) error {
	if caller != e.upgradeAuthority || e.upgradeAuthority == ([20]byte{}) {
		return ErrNotUpgradeAuthority
	}
	return nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	settings, ok, err := e.state.AdminSettingsGet()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAdminNotConfigured
	}
	if settings.AdminKey != caller {
		return ErrNotAdmin
	}
	return nil
}

// Bootstrap creates the administrator singleton. It is callable exactly once
// and only by the upgrade authority.
func (e *Engine) Bootstrap(caller, adminKey [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireUpgradeAuthority(caller); err != nil {
		return err
	}
	if _, ok, err := e.state.AdminSettingsGet(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	if err := e.state.AdminSettingsPut(&AdminSettings{AdminKey: adminKey}); err != nil {
		return err
	}
	e.emit(NewAdminBootstrappedEvent(adminKey))
	return nil
}

// RotateAdmin replaces the registered administrator. No history is kept; the
// last write wins.
func (e *Engine) RotateAdmin(caller, adminKey [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireUpgradeAuthority(caller); err != nil {
		return err
	}
	if _, ok, err := e.state.AdminSettingsGet(); err != nil {
		return err
	} else if !ok {
		return ErrAdminNotConfigured
	}
	if err := e.state.AdminSettingsPut(&AdminSettings{AdminKey: adminKey}); err != nil {
		return err
	}
	e.emit(NewAdminRotatedEvent(adminKey))
	return nil
}

// Get loads the auction record stored under name.
func (e *Engine) Get(name string) (*Auction, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	a, ok, err := e.state.AuctionGet(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	return a.Clone(), true, nil
}

// Initialize opens a new auction: it creates the record and its escrow
// account at their derived addresses, snapshots the seller's token-account
// reserve as the stipend paid to every future outbid leader, and moves the
// opening price into escrow. The seller starts as leader so the first real
// bid settles exactly like every later one.
func (e *Engine) Initialize(caller, callerTokenAccount [20]byte, name string, price, priceIncrement uint64, startTime, endTime int64) (*Auction, error) {
	if e == nil || e.state == nil || e.ledger == nil {
		return nil, errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if startTime >= endTime {
		return nil, ErrStartAfterEndTimestamp
	}
	if e.now() >= endTime {
		return nil, ErrEndTimestampAlreadyPassed
	}
	if len(name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	if _, ok, err := e.state.AuctionGet(name); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAuctionExists
	}

	recordAddr, bump := DeriveAuctionAddress(name)
	proceedsAddr := DeriveProceedsAddress(recordAddr)

	// Lock the record reserve before allocating anything else.
	callerAcc, err := e.state.GetAccount(caller)
	if err != nil {
		return nil, err
	}
	if callerAcc.Balance < RecordReserve {
		return nil, fmt.Errorf("auction: cannot fund record reserve")
	}
	callerAcc.Balance -= RecordReserve
	if err := e.state.PutAccount(caller, callerAcc); err != nil {
		return nil, err
	}

	if err := e.ledger.CreateAccount(proceedsAddr, recordAddr, caller); err != nil {
		return nil, err
	}
	initialEscrow, err := e.ledger.ReserveOf(callerTokenAccount)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(callerTokenAccount, proceedsAddr, token.Signer(caller), price); err != nil {
		return nil, err
	}

	a := &Auction{
		Bump:                 bump,
		Name:                 name,
		Amount:               price,
		AmountIncrement:      priceIncrement,
		InitialEscrowBalance: initialEscrow,
		StartTime:            startTime,
		EndTime:              endTime,
		Leader:               caller,
		LeaderTokenAccount:   callerTokenAccount,
	}
	if err := e.state.AuctionPut(a); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(a))
	return a.Clone(), nil
}

// Bid settles a new highest bid against the named auction. The bidder's
// payout token account must already exist.
func (e *Engine) Bid(name string, caller, callerTokenAccount [20]byte, amount uint64) (*Auction, error) {
	if e == nil || e.state == nil || e.ledger == nil {
		return nil, errNilState
	}
	return e.settleBid(name, caller, callerTokenAccount, amount)
}

// BidCreate is the same transition as Bid, additionally provisioning the
// bidder's associated token account when it does not exist yet. The account
// reserve comes out of the bidder's native balance.
func (e *Engine) BidCreate(name string, caller [20]byte, amount uint64) (*Auction, error) {
	if e == nil || e.state == nil || e.ledger == nil {
		return nil, errNilState
	}
	tokenAccount := token.AssociatedAddress(caller)
	exists, err := e.ledger.Exists(tokenAccount)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := e.ledger.CreateAccount(tokenAccount, caller, caller); err != nil {
			return nil, err
		}
	}
	return e.settleBid(name, caller, tokenAccount, amount)
}

func (e *Engine) settleBid(name string, caller, callerTokenAccount [20]byte, amount uint64) (*Auction, error) {
	a, ok, err := e.state.AuctionGet(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAuctionNotFound
	}
	now := e.now()
	switch a.PhaseAt(now) {
	case PhasePending:
		return nil, ErrAuctionNotStarted
	case PhaseEnded:
		return nil, ErrAuctionEnded
	}
	minimum, err := checkedAddUint64(a.Amount, a.AmountIncrement)
	if err != nil {
		return nil, err
	}
	if amount < minimum {
		return nil, ErrBidTooLow
	}

	proof := ProofFor(a)
	proceedsAddr := DeriveProceedsAddress(proof.Address())

	// Deposit the new bid, compensate the outbid leader for their account
	// reserve, then release their escrowed stake back to them. The three
	// moves plus the record update commit as one unit or not at all.
	if err := e.ledger.Transfer(callerTokenAccount, proceedsAddr, token.Signer(caller), amount); err != nil {
		return nil, err
	}
	if err := e.transferNative(caller, a.Leader, a.InitialEscrowBalance); err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(proceedsAddr, a.LeaderTokenAccount, proof, a.Amount); err != nil {
		return nil, err
	}

	a.Amount = amount
	a.Leader = caller
	a.LeaderTokenAccount = callerTokenAccount
	extended := false
	if a.EndTime-now < GracePeriod {
		newEnd, err := checkedAddInt64(now, ExtensionPeriod)
		if err != nil {
			return nil, err
		}
		a.EndTime = newEnd
		extended = true
	}
	if err := e.state.AuctionPut(a); err != nil {
		return nil, err
	}
	e.emit(NewBidEvent(a))
	if extended {
		e.emit(NewExtendedEvent(a))
	}
	return a.Clone(), nil
}

// Close finalises an ended auction: the escrow balance is forwarded to the
// administrator's token account as sale proceeds, the escrow account's
// reserve goes to the final leader, and the record reserve returns to the
// caller once the record is destroyed. The winner's deposit stays with the
// seller as the purchase price.
func (e *Engine) Close(name string, caller, callerTokenAccount [20]byte) error {
	if e == nil || e.state == nil || e.ledger == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	a, ok, err := e.state.AuctionGet(name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuctionNotFound
	}
	if e.now() <= a.EndTime {
		return ErrAuctionNotFinished
	}

	proof := ProofFor(a)
	proceedsAddr := DeriveProceedsAddress(proof.Address())
	balance, err := e.ledger.BalanceOf(proceedsAddr)
	if err != nil {
		return err
	}
	if err := e.ledger.Transfer(proceedsAddr, callerTokenAccount, proof, balance); err != nil {
		return err
	}
	if err := e.ledger.CloseAccount(proceedsAddr, a.Leader, proof); err != nil {
		return err
	}
	if err := e.state.AuctionDelete(name); err != nil {
		return err
	}
	callerAcc, err := e.state.GetAccount(caller)
	if err != nil {
		return err
	}
	callerAcc.Balance += RecordReserve
	if err := e.state.PutAccount(caller, callerAcc); err != nil {
		return err
	}
	e.emit(NewClosedEvent(a))
	return nil
}
