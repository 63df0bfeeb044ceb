package auction

// MaxNameLen bounds the byte length of an auction name. The name doubles as
// the record's unique key and feeds the address derivation, so the bound also
// caps the persisted record size.
const MaxNameLen = 64

// Anti-snipe policy. A bid landing closer than GracePeriod seconds to the
// deadline pushes the deadline out to now + ExtensionPeriod. Both are global
// constants rather than per-auction parameters: extension timing is network
// policy, pricing is not.
const (
	GracePeriod     int64 = 60
	ExtensionPeriod int64 = 60
)

// AdminSettings is the singleton holding the registered administrator. Only
// the administrator may open and close auctions; only the upgrade authority
// may bootstrap or rotate the administrator.
type AdminSettings struct {
	AdminKey [20]byte
}

// Auction is the durable record of one listing: its price ladder, timing and
// current leader. Amount always equals the escrow account's asset balance
// between transitions. Bump is the derivation salt needed to re-derive the
// record's own custodial authority.
type Auction struct {
	Bump                 uint8
	Name                 string
	Amount               uint64
	AmountIncrement      uint64
	InitialEscrowBalance uint64
	StartTime            int64
	EndTime              int64
	Leader               [20]byte
	LeaderTokenAccount   [20]byte
}

// Clone returns a copy of the auction record so callers can safely mutate the
// copy without affecting the stored instance.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// Phase is the lifecycle position of an auction, derived from its stored
// timestamps and the current time. It is never persisted: the terminal
// "closed" state is the physical deletion of the record.
type Phase uint8

const (
	PhasePending Phase = iota
	PhaseActive
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// PhaseAt derives the auction's phase at the supplied timestamp.
func (a *Auction) PhaseAt(now int64) Phase {
	switch {
	case now < a.StartTime:
		return PhasePending
	case now < a.EndTime:
		return PhaseActive
	default:
		return PhaseEnded
	}
}

func checkedAddUint64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrInvalidCalculation
	}
	return sum, nil
}

func checkedAddInt64(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrInvalidCalculation
	}
	return sum, nil
}
