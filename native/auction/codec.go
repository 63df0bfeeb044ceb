package auction

import (
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// The record is persisted with a fixed layout: an 8-byte discriminator tag
// followed by the fields in declaration order, with the name stored as a
// 4-byte length plus a fixed MaxNameLen region. Every record therefore
// occupies the same number of bytes regardless of name length.
var recordDiscriminator = ethcrypto.Keccak256([]byte("account:auction"))[:8]

// EncodedRecordSize is the exact byte length of an encoded auction record.
const EncodedRecordSize = 8 + 1 + 4 + MaxNameLen + 8 + 8 + 8 + 8 + 8 + 20 + 20

// EncodeRecord serialises the auction record into its fixed on-disk layout.
func EncodeRecord(a *Auction) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("auction: nil record")
	}
	if len(a.Name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	buf := make([]byte, EncodedRecordSize)
	offset := 0
	copy(buf[offset:], recordDiscriminator)
	offset += 8
	buf[offset] = a.Bump
	offset++
	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(a.Name)))
	offset += 4
	copy(buf[offset:], a.Name)
	offset += MaxNameLen
	binary.LittleEndian.PutUint64(buf[offset:], a.Amount)
	offset += 8
	binary.LittleEndian.PutUint64(buf[offset:], a.AmountIncrement)
	offset += 8
	binary.LittleEndian.PutUint64(buf[offset:], a.InitialEscrowBalance)
	offset += 8
	binary.LittleEndian.PutUint64(buf[offset:], uint64(a.StartTime))
	offset += 8
	binary.LittleEndian.PutUint64(buf[offset:], uint64(a.EndTime))
	offset += 8
	copy(buf[offset:], a.Leader[:])
	offset += 20
	copy(buf[offset:], a.LeaderTokenAccount[:])
	return buf, nil
}

// DecodeRecord parses an encoded auction record, rejecting payloads with a
// foreign discriminator or an out-of-range name length.
func DecodeRecord(data []byte) (*Auction, error) {
	if len(data) != EncodedRecordSize {
		return nil, fmt.Errorf("auction: invalid record size %d", len(data))
	}
	offset := 0
	for i, b := range recordDiscriminator {
		if data[i] != b {
			return nil, fmt.Errorf("auction: unknown record discriminator")
		}
	}
	offset += 8
	a := &Auction{}
	a.Bump = data[offset]
	offset++
	nameLen := binary.LittleEndian.Uint32(data[offset:])
	if nameLen > MaxNameLen {
		return nil, fmt.Errorf("auction: corrupt name length %d", nameLen)
	}
	offset += 4
	a.Name = string(data[offset : offset+int(nameLen)])
	offset += MaxNameLen
	a.Amount = binary.LittleEndian.Uint64(data[offset:])
	offset += 8
	a.AmountIncrement = binary.LittleEndian.Uint64(data[offset:])
	offset += 8
	a.InitialEscrowBalance = binary.LittleEndian.Uint64(data[offset:])
	offset += 8
	a.StartTime = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8
	a.EndTime = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8
	copy(a.Leader[:], data[offset:])
	offset += 20
	copy(a.LeaderTokenAccount[:], data[offset:])
	return a, nil
}
