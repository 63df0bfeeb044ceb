package auction

import (
	"encoding/hex"
	"strconv"

	"auctiond/core/types"
)

const (
	EventTypeAdminBootstrapped = "auction.admin.bootstrapped"
	EventTypeAdminRotated      = "auction.admin.rotated"
	EventTypeInitialized       = "auction.initialized"
	EventTypeBid               = "auction.bid"
	EventTypeExtended          = "auction.extended"
	EventTypeClosed            = "auction.closed"
)

// NewAdminBootstrappedEvent returns the canonical payload emitted when the
// administrator singleton is created.
func NewAdminBootstrappedEvent(adminKey [20]byte) *types.Event {
	return &types.Event{Type: EventTypeAdminBootstrapped, Attributes: map[string]string{
		"adminKey": hex.EncodeToString(adminKey[:]),
	}}
}

// NewAdminRotatedEvent returns the canonical payload emitted when the
// administrator is replaced.
func NewAdminRotatedEvent(adminKey [20]byte) *types.Event {
	return &types.Event{Type: EventTypeAdminRotated, Attributes: map[string]string{
		"adminKey": hex.EncodeToString(adminKey[:]),
	}}
}

// NewInitializedEvent returns the canonical payload for a newly opened
// auction.
func NewInitializedEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeInitialized, a)
}

// NewBidEvent returns the canonical payload emitted when a bid settles.
func NewBidEvent(a *Auction) *types.Event { return newAuctionEvent(EventTypeBid, a) }

// NewExtendedEvent returns the canonical payload emitted when a bid inside
// the grace window pushed the deadline out.
func NewExtendedEvent(a *Auction) *types.Event { return newAuctionEvent(EventTypeExtended, a) }

// NewClosedEvent returns the canonical payload emitted when an auction is
// settled and its record destroyed.
func NewClosedEvent(a *Auction) *types.Event { return newAuctionEvent(EventTypeClosed, a) }

func newAuctionEvent(eventType string, a *Auction) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["name"] = a.Name
	attrs["amount"] = strconv.FormatUint(a.Amount, 10)
	attrs["amountIncrement"] = strconv.FormatUint(a.AmountIncrement, 10)
	attrs["startTime"] = strconv.FormatInt(a.StartTime, 10)
	attrs["endTime"] = strconv.FormatInt(a.EndTime, 10)
	attrs["leader"] = hex.EncodeToString(a.Leader[:])
	attrs["leaderTokenAccount"] = hex.EncodeToString(a.LeaderTokenAccount[:])
	return &types.Event{Type: eventType, Attributes: attrs}
}
