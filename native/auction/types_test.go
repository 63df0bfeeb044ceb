package auction

import (
	"errors"
	"testing"
)

func TestPhaseAt(t *testing.T) {
	a := &Auction{StartTime: 100, EndTime: 200}
	cases := []struct {
		now  int64
		want Phase
	}{
		{0, PhasePending},
		{99, PhasePending},
		{100, PhaseActive},
		{199, PhaseActive},
		{200, PhaseEnded},
		{5000, PhaseEnded},
	}
	for _, tc := range cases {
		if got := a.PhaseAt(tc.now); got != tc.want {
			t.Fatalf("PhaseAt(%d) = %v, want %v", tc.now, got, tc.want)
		}
	}
}

func TestPhaseString(t *testing.T) {
	if PhasePending.String() != "pending" || PhaseActive.String() != "active" || PhaseEnded.String() != "ended" {
		t.Fatal("unexpected phase labels")
	}
	if Phase(99).String() != "unknown" {
		t.Fatal("unexpected label for invalid phase")
	}
}

func TestCheckedAddUint64(t *testing.T) {
	if sum, err := checkedAddUint64(1, 2); err != nil || sum != 3 {
		t.Fatalf("checkedAddUint64(1,2) = %d, %v", sum, err)
	}
	if _, err := checkedAddUint64(^uint64(0), 1); !errors.Is(err, ErrInvalidCalculation) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestCheckedAddInt64(t *testing.T) {
	if sum, err := checkedAddInt64(10, 60); err != nil || sum != 70 {
		t.Fatalf("checkedAddInt64(10,60) = %d, %v", sum, err)
	}
	if _, err := checkedAddInt64(int64(^uint64(0)>>1), 1); !errors.Is(err, ErrInvalidCalculation) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := &Auction{Name: "lot", Amount: 100}
	clone := a.Clone()
	clone.Amount = 500
	if a.Amount != 100 {
		t.Fatal("clone aliases the original record")
	}
}
