package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"auctiond/core/types"
	"auctiond/native/auction"
	"auctiond/storage"
)

var (
	accountPrefix      = []byte("account:")
	tokenAccountPrefix = []byte("token-account:")
	auctionPrefix      = []byte("auction-record:")
	adminSettingsKey   = ethcrypto.Keccak256([]byte("admin-settings"))
)

// Manager provides typed read and write access to the settlement state stored
// in the underlying key-value database. Keys are keccak256 hashes of a
// namespace prefix plus the entity key, matching the historical behaviour of
// hashed state tries.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func tokenAccountKey(addr [20]byte) []byte {
	buf := make([]byte, len(tokenAccountPrefix)+len(addr))
	copy(buf, tokenAccountPrefix)
	copy(buf[len(tokenAccountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func auctionKey(name string) []byte {
	buf := make([]byte, len(auctionPrefix)+len(name))
	copy(buf, auctionPrefix)
	copy(buf[len(auctionPrefix):], name)
	return ethcrypto.Keccak256(buf)
}

type storedAccount struct {
	Nonce   uint64
	Balance uint64
}

type storedTokenAccount struct {
	Authority [20]byte
	Balance   uint64
	Reserve   uint64
}

// GetAccount loads the native-currency account stored under addr. Unknown
// addresses resolve to a zero-balance account so callers never need a
// separate existence check.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	data, err := m.db.Get(accountKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &types.Account{}, nil
		}
		return nil, err
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return &types.Account{Nonce: stored.Nonce, Balance: stored.Balance}, nil
}

// PutAccount persists the native-currency account under addr.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: account.Balance})
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), encoded)
}

// TokenAccountGet loads the token account stored under addr.
func (m *Manager) TokenAccountGet(addr [20]byte) (*types.TokenAccount, bool, error) {
	data, err := m.db.Get(tokenAccountKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var stored storedTokenAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode token account: %w", err)
	}
	return &types.TokenAccount{
		Authority: stored.Authority,
		Balance:   stored.Balance,
		Reserve:   stored.Reserve,
	}, true, nil
}

// TokenAccountPut persists the token account under addr.
func (m *Manager) TokenAccountPut(addr [20]byte, account *types.TokenAccount) error {
	if account == nil {
		return fmt.Errorf("state: nil token account")
	}
	encoded, err := rlp.EncodeToBytes(&storedTokenAccount{
		Authority: account.Authority,
		Balance:   account.Balance,
		Reserve:   account.Reserve,
	})
	if err != nil {
		return err
	}
	return m.db.Put(tokenAccountKey(addr), encoded)
}

// TokenAccountDelete removes the token account stored under addr.
func (m *Manager) TokenAccountDelete(addr [20]byte) error {
	return m.db.Delete(tokenAccountKey(addr))
}

// AuctionGet loads the auction record stored under name.
func (m *Manager) AuctionGet(name string) (*auction.Auction, bool, error) {
	data, err := m.db.Get(auctionKey(name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	record, err := auction.DecodeRecord(data)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// AuctionPut persists the auction record under its own name.
func (m *Manager) AuctionPut(a *auction.Auction) error {
	if a == nil {
		return fmt.Errorf("state: nil auction record")
	}
	encoded, err := auction.EncodeRecord(a)
	if err != nil {
		return err
	}
	return m.db.Put(auctionKey(a.Name), encoded)
}

// AuctionDelete destroys the auction record stored under name.
func (m *Manager) AuctionDelete(name string) error {
	return m.db.Delete(auctionKey(name))
}

// AdminSettingsGet loads the administrator singleton.
func (m *Manager) AdminSettingsGet() (*auction.AdminSettings, bool, error) {
	data, err := m.db.Get(adminSettingsKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(data) != 20 {
		return nil, false, fmt.Errorf("state: corrupt admin settings")
	}
	settings := &auction.AdminSettings{}
	copy(settings.AdminKey[:], data)
	return settings, true, nil
}

// AdminSettingsPut persists the administrator singleton.
func (m *Manager) AdminSettingsPut(settings *auction.AdminSettings) error {
	if settings == nil {
		return fmt.Errorf("state: nil admin settings")
	}
	return m.db.Put(adminSettingsKey, settings.AdminKey[:])
}
