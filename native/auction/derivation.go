package auction

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	auctionSeed  = []byte("auction")
	proceedsSeed = []byte("proceeds")
)

// deriveRaw hashes the seed material together with the bump byte and folds the
// digest down to a 20-byte address. The bump keeps re-derivation stable across
// restarts: it is persisted on the record while the full seed set never is.
func deriveRaw(bump byte, seeds ...[]byte) [20]byte {
	material := make([][]byte, 0, len(seeds)+1)
	material = append(material, seeds...)
	material = append(material, []byte{bump})
	digest := ethcrypto.Keccak256(material...)
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// DeriveAuctionAddress computes the deterministic record address for the given
// auction name along with the bump salt that must be stored to re-derive it.
func DeriveAuctionAddress(name string) ([20]byte, byte) {
	bump := ethcrypto.Keccak256(auctionSeed, []byte(name))[31]
	return deriveRaw(bump, auctionSeed, []byte(name)), bump
}

// DeriveProceedsAddress computes the escrow token-account address bound to the
// given auction record address.
func DeriveProceedsAddress(auctionAddr [20]byte) [20]byte {
	bump := ethcrypto.Keccak256(proceedsSeed, auctionAddr[:])[31]
	return deriveRaw(bump, proceedsSeed, auctionAddr[:])
}

// AuthorityProof is the capability the engine presents to the token ledger
// when disbursing escrowed funds. It is reconstructed from the auction's name
// and stored bump on every use and is never persisted or transmitted; holding
// a valid proof demonstrates that the transfer originates from the engine's
// own transition code rather than from any end user.
type AuthorityProof struct {
	name string
	bump byte
}

// ProofFor rebuilds the custodial authority proof for the given record.
func ProofFor(a *Auction) AuthorityProof {
	return AuthorityProof{name: a.Name, bump: a.Bump}
}

// Address returns the derived authority address the proof stands for.
func (p AuthorityProof) Address() [20]byte {
	return deriveRaw(p.bump, auctionSeed, []byte(p.name))
}
