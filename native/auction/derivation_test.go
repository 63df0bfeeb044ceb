package auction

import "testing"

func TestDeriveAuctionAddressIsDeterministic(t *testing.T) {
	addr1, bump1 := DeriveAuctionAddress("lot")
	addr2, bump2 := DeriveAuctionAddress("lot")
	if addr1 != addr2 || bump1 != bump2 {
		t.Fatal("derivation is not deterministic")
	}
	other, _ := DeriveAuctionAddress("other-lot")
	if other == addr1 {
		t.Fatal("distinct names derived the same address")
	}
}

func TestProceedsAddressBoundToRecord(t *testing.T) {
	recordA, _ := DeriveAuctionAddress("a")
	recordB, _ := DeriveAuctionAddress("b")
	if DeriveProceedsAddress(recordA) == DeriveProceedsAddress(recordB) {
		t.Fatal("distinct records derived the same escrow address")
	}
	if DeriveProceedsAddress(recordA) == recordA {
		t.Fatal("escrow address collides with its record address")
	}
}

func TestProofReconstructsRecordAddress(t *testing.T) {
	addr, bump := DeriveAuctionAddress("lot")
	a := &Auction{Name: "lot", Bump: bump}
	if ProofFor(a).Address() != addr {
		t.Fatal("proof does not reconstruct the derived authority")
	}
}
