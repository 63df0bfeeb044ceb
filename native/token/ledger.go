package token

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"auctiond/core/types"
)

// DefaultAccountReserve is the native-currency deposit locked when a token
// account is created and returned to the close destination when the account
// is closed.
const DefaultAccountReserve uint64 = 2_000_000

var (
	errNilState        = errors.New("token ledger: state not configured")
	ErrAccountNotFound = errors.New("token ledger: token account not found")
	ErrAccountExists   = errors.New("token ledger: token account already exists")
	ErrUnauthorized    = errors.New("token ledger: authority mismatch")
	ErrInsufficient    = errors.New("token ledger: insufficient balance")
	ErrNotEmpty        = errors.New("token ledger: account balance must be zero to close")
)

// Authority is presented alongside a transfer or close to prove control over
// the source account. A runtime-authenticated signer and the auction engine's
// derived-authority proof both satisfy it.
type Authority interface {
	Address() [20]byte
}

// Signer is the authority of an ordinary user-held account. The host runtime
// has already verified the signature; the ledger only compares addresses.
type Signer [20]byte

func (s Signer) Address() [20]byte { return [20]byte(s) }

type ledgerState interface {
	TokenAccountGet(addr [20]byte) (*types.TokenAccount, bool, error)
	TokenAccountPut(addr [20]byte, account *types.TokenAccount) error
	TokenAccountDelete(addr [20]byte) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Ledger implements the fungible-asset custody primitives the settlement
// engine consumes: account creation, authenticated transfer and account
// close-out. It mutates balances only through the configured state backend so
// a transition overlay captures every effect.
type Ledger struct {
	state   ledgerState
	reserve uint64
}

// NewLedger creates a token ledger with the default account reserve.
func NewLedger() *Ledger {
	return &Ledger{reserve: DefaultAccountReserve}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetAccountReserve overrides the native deposit charged per account,
// primarily for tests.
func (l *Ledger) SetAccountReserve(reserve uint64) { l.reserve = reserve }

// AssociatedAddress derives the canonical token account address for an owner
// identity. The derivation is pure so any party can compute it, but only the
// ledger creates accounts at the derived location.
func AssociatedAddress(owner [20]byte) [20]byte {
	digest := ethcrypto.Keccak256([]byte("associated"), owner[:])
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// Exists reports whether a token account is present at addr.
func (l *Ledger) Exists(addr [20]byte) (bool, error) {
	if l == nil || l.state == nil {
		return false, errNilState
	}
	_, ok, err := l.state.TokenAccountGet(addr)
	return ok, err
}

// BalanceOf returns the asset balance held by the token account.
func (l *Ledger) BalanceOf(addr [20]byte) (uint64, error) {
	account, err := l.load(addr)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// ReserveOf returns the native-currency deposit locked in the token account.
func (l *Ledger) ReserveOf(addr [20]byte) (uint64, error) {
	account, err := l.load(addr)
	if err != nil {
		return 0, err
	}
	return account.Reserve, nil
}

// AuthorityOf returns the identity entitled to move funds out of the account.
func (l *Ledger) AuthorityOf(addr [20]byte) ([20]byte, error) {
	account, err := l.load(addr)
	if err != nil {
		return [20]byte{}, err
	}
	return account.Authority, nil
}

func (l *Ledger) load(addr [20]byte) (*types.TokenAccount, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	account, ok, err := l.state.TokenAccountGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// CreateAccount allocates a token account at addr controlled by authority.
// The account reserve is debited from the payer's native balance.
func (l *Ledger) CreateAccount(addr, authority, payer [20]byte) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if _, ok, err := l.state.TokenAccountGet(addr); err != nil {
		return err
	} else if ok {
		return ErrAccountExists
	}
	payerAcc, err := l.state.GetAccount(payer)
	if err != nil {
		return err
	}
	if payerAcc.Balance < l.reserve {
		return fmt.Errorf("token ledger: payer cannot fund account reserve: %w", ErrInsufficient)
	}
	payerAcc.Balance -= l.reserve
	if err := l.state.PutAccount(payer, payerAcc); err != nil {
		return err
	}
	return l.state.TokenAccountPut(addr, &types.TokenAccount{
		Authority: authority,
		Balance:   0,
		Reserve:   l.reserve,
	})
}

// Transfer moves amount asset units between token accounts. The presented
// authority must match the source account's registered authority.
func (l *Ledger) Transfer(from, to [20]byte, authority Authority, amount uint64) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	source, err := l.load(from)
	if err != nil {
		return err
	}
	if authority == nil || authority.Address() != source.Authority {
		return ErrUnauthorized
	}
	if amount == 0 || from == to {
		return nil
	}
	dest, err := l.load(to)
	if err != nil {
		return err
	}
	if source.Balance < amount {
		return ErrInsufficient
	}
	source.Balance -= amount
	dest.Balance += amount
	if err := l.state.TokenAccountPut(from, source); err != nil {
		return err
	}
	return l.state.TokenAccountPut(to, dest)
}

// CloseAccount removes an emptied token account and credits its native
// reserve to the destination identity.
func (l *Ledger) CloseAccount(addr, destination [20]byte, authority Authority) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	account, err := l.load(addr)
	if err != nil {
		return err
	}
	if authority == nil || authority.Address() != account.Authority {
		return ErrUnauthorized
	}
	if account.Balance != 0 {
		return ErrNotEmpty
	}
	destAcc, err := l.state.GetAccount(destination)
	if err != nil {
		return err
	}
	destAcc.Balance += account.Reserve
	if err := l.state.PutAccount(destination, destAcc); err != nil {
		return err
	}
	return l.state.TokenAccountDelete(addr)
}
