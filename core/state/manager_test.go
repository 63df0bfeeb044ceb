package state

import (
	"testing"

	"auctiond/core/types"
	"auctiond/native/auction"
	"auctiond/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestAccountDefaultsToZero(t *testing.T) {
	m := newTestManager(t)
	acc, err := m.GetAccount(testAddr(0x01))
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Balance != 0 || acc.Nonce != 0 {
		t.Fatalf("expected zero account, got %+v", acc)
	}
}

func TestAccountRoundTrip(t *testing.T) {
	m := newTestManager(t)
	addr := testAddr(0x02)
	if err := m.PutAccount(addr, &types.Account{Nonce: 7, Balance: 1234}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	acc, err := m.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Nonce != 7 || acc.Balance != 1234 {
		t.Fatalf("round trip mismatch: %+v", acc)
	}
}

func TestTokenAccountLifecycle(t *testing.T) {
	m := newTestManager(t)
	addr := testAddr(0x03)
	if _, ok, err := m.TokenAccountGet(addr); err != nil || ok {
		t.Fatalf("expected missing token account, ok=%v err=%v", ok, err)
	}
	stored := &types.TokenAccount{Authority: testAddr(0x04), Balance: 55, Reserve: 9}
	if err := m.TokenAccountPut(addr, stored); err != nil {
		t.Fatalf("put token account: %v", err)
	}
	loaded, ok, err := m.TokenAccountGet(addr)
	if err != nil || !ok {
		t.Fatalf("get token account: ok=%v err=%v", ok, err)
	}
	if loaded.Authority != stored.Authority || loaded.Balance != 55 || loaded.Reserve != 9 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if err := m.TokenAccountDelete(addr); err != nil {
		t.Fatalf("delete token account: %v", err)
	}
	if _, ok, _ := m.TokenAccountGet(addr); ok {
		t.Fatal("token account survived delete")
	}
}

func TestAuctionRecordLifecycle(t *testing.T) {
	m := newTestManager(t)
	record := &auction.Auction{
		Bump:                 3,
		Name:                 "genesis-lot",
		Amount:               100,
		AmountIncrement:      10,
		InitialEscrowBalance: 2_000_000,
		StartTime:            0,
		EndTime:              1000,
		Leader:               testAddr(0x05),
		LeaderTokenAccount:   testAddr(0x06),
	}
	if err := m.AuctionPut(record); err != nil {
		t.Fatalf("put auction: %v", err)
	}
	loaded, ok, err := m.AuctionGet("genesis-lot")
	if err != nil || !ok {
		t.Fatalf("get auction: ok=%v err=%v", ok, err)
	}
	if *loaded != *record {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, record)
	}
	if err := m.AuctionDelete("genesis-lot"); err != nil {
		t.Fatalf("delete auction: %v", err)
	}
	if _, ok, _ := m.AuctionGet("genesis-lot"); ok {
		t.Fatal("auction record survived delete")
	}
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	m := newTestManager(t)
	if _, ok, err := m.AdminSettingsGet(); err != nil || ok {
		t.Fatalf("expected unset admin settings, ok=%v err=%v", ok, err)
	}
	if err := m.AdminSettingsPut(&auction.AdminSettings{AdminKey: testAddr(0x07)}); err != nil {
		t.Fatalf("put admin settings: %v", err)
	}
	settings, ok, err := m.AdminSettingsGet()
	if err != nil || !ok {
		t.Fatalf("get admin settings: ok=%v err=%v", ok, err)
	}
	if settings.AdminKey != testAddr(0x07) {
		t.Fatalf("unexpected admin key: %x", settings.AdminKey)
	}
}
