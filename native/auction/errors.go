package auction

import "errors"

// Validation failures surfaced by the lifecycle transitions. Each one is
// terminal: the caller must resubmit with corrected inputs or wait for a
// time-based condition to become true. None are transient and none leave
// partial state behind.
var (
	ErrStartAfterEndTimestamp    = errors.New("auction: start timestamp must be smaller than end timestamp")
	ErrEndTimestampAlreadyPassed = errors.New("auction: end timestamp already passed")
	ErrAuctionNotStarted         = errors.New("auction: auction has not yet started")
	ErrAuctionEnded              = errors.New("auction: auction has ended")
	ErrNameTooLong               = errors.New("auction: auction name is too long")
	ErrInvalidCalculation        = errors.New("auction: invalid calculation")
	ErrBidTooLow                 = errors.New("auction: the new bid is not greater than the current best bid")
	ErrAuctionNotFinished        = errors.New("auction: auction has not yet finished")
)

// Failures outside the original transition taxonomy: record lookup, admin
// gating and singleton bootstrap.
var (
	ErrAuctionNotFound     = errors.New("auction: auction not found")
	ErrAuctionExists       = errors.New("auction: auction already exists")
	ErrAlreadyInitialized  = errors.New("auction: admin settings already initialized")
	ErrAdminNotConfigured  = errors.New("auction: admin settings not configured")
	ErrNotAdmin            = errors.New("auction: caller is not the registered administrator")
	ErrNotUpgradeAuthority = errors.New("auction: caller is not the upgrade authority")
)
