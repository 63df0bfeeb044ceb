package core

import (
	"encoding/json"
	"fmt"
	"os"

	"auctiond/core/state"
	"auctiond/core/types"
	"auctiond/crypto"
	"auctiond/native/token"
	"auctiond/storage"
)

var genesisAppliedKey = []byte("core:genesis-applied")

// GenesisAccount seeds a native-currency balance at a bech32 address.
type GenesisAccount struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// GenesisTokenAccount seeds a token account. When Address is empty the
// account is created at the owner's associated address, and a zero reserve
// defaults to the standard account reserve.
type GenesisTokenAccount struct {
	Address string `json:"address,omitempty"`
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
	Reserve uint64 `json:"reserve,omitempty"`
}

// Genesis describes the initial ledger contents applied to an empty database.
type Genesis struct {
	Accounts      []GenesisAccount      `json:"accounts"`
	TokenAccounts []GenesisTokenAccount `json:"tokenAccounts"`
}

// LoadGenesis parses a genesis file from disk.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	genesis := &Genesis{}
	if err := json.Unmarshal(data, genesis); err != nil {
		return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
	}
	return genesis, nil
}

// ApplyGenesis seeds the database with the genesis allocations. It runs at
// most once per database; later calls are no-ops so restarts are safe.
func (n *Node) ApplyGenesis(genesis *Genesis) error {
	if genesis == nil {
		return nil
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	applied, err := n.db.Has(genesisAppliedKey)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	overlay := storage.NewOverlay(n.db)
	manager := state.NewManager(overlay)
	for _, alloc := range genesis.Accounts {
		addr, err := decodeGenesisAddress(alloc.Address)
		if err != nil {
			return err
		}
		if err := manager.PutAccount(addr, &types.Account{Balance: alloc.Balance}); err != nil {
			return err
		}
	}
	for _, alloc := range genesis.TokenAccounts {
		owner, err := decodeGenesisAddress(alloc.Owner)
		if err != nil {
			return err
		}
		addr := token.AssociatedAddress(owner)
		if alloc.Address != "" {
			if addr, err = decodeGenesisAddress(alloc.Address); err != nil {
				return err
			}
		}
		reserve := alloc.Reserve
		if reserve == 0 {
			reserve = token.DefaultAccountReserve
		}
		if err := manager.TokenAccountPut(addr, &types.TokenAccount{
			Authority: owner,
			Balance:   alloc.Balance,
			Reserve:   reserve,
		}); err != nil {
			return err
		}
	}
	if err := overlay.Put(genesisAppliedKey, []byte{1}); err != nil {
		return err
	}
	return overlay.Commit()
}

func decodeGenesisAddress(raw string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(raw)
	if err != nil {
		return out, fmt.Errorf("genesis: address %q: %w", raw, err)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}
