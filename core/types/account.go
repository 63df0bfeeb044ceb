package types

// Account holds the native-currency state of one identity on the settlement
// ledger. Asset balances live in dedicated TokenAccount records, mirroring the
// split between system accounts and token accounts on the host runtime.
type Account struct {
	Nonce   uint64 `json:"nonce"`
	Balance uint64 `json:"balance"`
}

// TokenAccount is a custodial holder of fungible-asset units. Authority names
// the only identity entitled to move funds out of the account; for escrow
// accounts that identity is a program-derived address with no private key.
// Reserve is the native-currency deposit locked when the account was created
// and returned to a designated destination when the account is closed.
type TokenAccount struct {
	Authority [20]byte `json:"authority"`
	Balance   uint64   `json:"balance"`
	Reserve   uint64   `json:"reserve"`
}
