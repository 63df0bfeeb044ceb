package auction

import "testing"

func TestBidEventAttributes(t *testing.T) {
	a := &Auction{
		Name:            "lot",
		Amount:          120,
		AmountIncrement: 10,
		StartTime:       0,
		EndTime:         1000,
	}
	evt := NewBidEvent(a)
	if evt.Type != EventTypeBid {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if evt.Attributes["name"] != "lot" || evt.Attributes["amount"] != "120" {
		t.Fatalf("unexpected attributes: %v", evt.Attributes)
	}
	if evt.Attributes["endTime"] != "1000" {
		t.Fatalf("unexpected endTime: %v", evt.Attributes["endTime"])
	}
}

func TestNilRecordYieldsEmptyAttributes(t *testing.T) {
	evt := NewClosedEvent(nil)
	if evt.Type != EventTypeClosed {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if len(evt.Attributes) != 0 {
		t.Fatalf("expected empty attributes, got %v", evt.Attributes)
	}
}

func TestAdminEventCarriesKey(t *testing.T) {
	key := newTestAddress(0xAB)
	evt := NewAdminRotatedEvent(key)
	if evt.Attributes["adminKey"] == "" {
		t.Fatal("admin key attribute missing")
	}
}
