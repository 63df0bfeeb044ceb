package token

import (
	"errors"
	"testing"

	"auctiond/core/types"
)

type mockState struct {
	accounts map[[20]byte]*types.Account
	tokens   map[[20]byte]*types.TokenAccount
}

func newMockState() *mockState {
	return &mockState{
		accounts: make(map[[20]byte]*types.Account),
		tokens:   make(map[[20]byte]*types.TokenAccount),
	}
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	acc, ok := m.accounts[addr]
	if !ok {
		return &types.Account{}, nil
	}
	copied := *acc
	return &copied, nil
}

func (m *mockState) PutAccount(addr [20]byte, account *types.Account) error {
	copied := *account
	m.accounts[addr] = &copied
	return nil
}

func (m *mockState) TokenAccountGet(addr [20]byte) (*types.TokenAccount, bool, error) {
	acc, ok := m.tokens[addr]
	if !ok {
		return nil, false, nil
	}
	copied := *acc
	return &copied, true, nil
}

func (m *mockState) TokenAccountPut(addr [20]byte, account *types.TokenAccount) error {
	copied := *account
	m.tokens[addr] = &copied
	return nil
}

func (m *mockState) TokenAccountDelete(addr [20]byte) error {
	delete(m.tokens, addr)
	return nil
}

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func newTestLedger() (*Ledger, *mockState) {
	st := newMockState()
	ledger := NewLedger()
	ledger.SetState(st)
	return ledger, st
}

func TestCreateAccountLocksReserve(t *testing.T) {
	ledger, st := newTestLedger()
	payer := addr(0x01)
	st.PutAccount(payer, &types.Account{Balance: 10_000_000})

	account := addr(0x02)
	if err := ledger.CreateAccount(account, payer, payer); err != nil {
		t.Fatalf("create: %v", err)
	}
	payerAcc, _ := st.GetAccount(payer)
	if payerAcc.Balance != 10_000_000-DefaultAccountReserve {
		t.Fatalf("reserve not debited: %d", payerAcc.Balance)
	}
	reserve, err := ledger.ReserveOf(account)
	if err != nil || reserve != DefaultAccountReserve {
		t.Fatalf("reserve = %d err=%v", reserve, err)
	}
	if err := ledger.CreateAccount(account, payer, payer); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestCreateAccountRequiresFunds(t *testing.T) {
	ledger, _ := newTestLedger()
	if err := ledger.CreateAccount(addr(0x02), addr(0x01), addr(0x01)); !errors.Is(err, ErrInsufficient) {
		t.Fatalf("expected ErrInsufficient, got %v", err)
	}
}

func TestTransferEnforcesAuthority(t *testing.T) {
	ledger, st := newTestLedger()
	owner := addr(0x01)
	from := addr(0x02)
	to := addr(0x03)
	st.TokenAccountPut(from, &types.TokenAccount{Authority: owner, Balance: 100})
	st.TokenAccountPut(to, &types.TokenAccount{Authority: addr(0x04)})

	if err := ledger.Transfer(from, to, Signer(addr(0x09)), 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := ledger.Transfer(from, to, Signer(owner), 200); !errors.Is(err, ErrInsufficient) {
		t.Fatalf("expected ErrInsufficient, got %v", err)
	}
	if err := ledger.Transfer(from, to, Signer(owner), 60); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	fromBal, _ := ledger.BalanceOf(from)
	toBal, _ := ledger.BalanceOf(to)
	if fromBal != 40 || toBal != 60 {
		t.Fatalf("balances after transfer: %d/%d", fromBal, toBal)
	}
}

func TestTransferZeroAndSelfAreNoops(t *testing.T) {
	ledger, st := newTestLedger()
	owner := addr(0x01)
	account := addr(0x02)
	st.TokenAccountPut(account, &types.TokenAccount{Authority: owner, Balance: 100})

	if err := ledger.Transfer(account, addr(0x03), Signer(owner), 0); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	if err := ledger.Transfer(account, account, Signer(owner), 50); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	balance, _ := ledger.BalanceOf(account)
	if balance != 100 {
		t.Fatalf("balance changed by a no-op: %d", balance)
	}
}

func TestCloseAccountReturnsReserve(t *testing.T) {
	ledger, st := newTestLedger()
	owner := addr(0x01)
	account := addr(0x02)
	destination := addr(0x03)
	st.TokenAccountPut(account, &types.TokenAccount{Authority: owner, Balance: 10, Reserve: 500})

	if err := ledger.CloseAccount(account, destination, Signer(owner)); !errors.Is(err, ErrNotEmpty) {
		t.Fatalf("expected ErrNotEmpty, got %v", err)
	}
	acc, _, _ := st.TokenAccountGet(account)
	acc.Balance = 0
	st.TokenAccountPut(account, acc)

	if err := ledger.CloseAccount(account, destination, Signer(addr(0x09))); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := ledger.CloseAccount(account, destination, Signer(owner)); err != nil {
		t.Fatalf("close: %v", err)
	}
	destAcc, _ := st.GetAccount(destination)
	if destAcc.Balance != 500 {
		t.Fatalf("reserve not credited: %d", destAcc.Balance)
	}
	if _, ok, _ := st.TokenAccountGet(account); ok {
		t.Fatal("account survived close")
	}
}

func TestAssociatedAddressIsStable(t *testing.T) {
	owner := addr(0x01)
	if AssociatedAddress(owner) != AssociatedAddress(owner) {
		t.Fatal("associated derivation is not deterministic")
	}
	if AssociatedAddress(owner) == AssociatedAddress(addr(0x02)) {
		t.Fatal("distinct owners derived the same associated address")
	}
}
