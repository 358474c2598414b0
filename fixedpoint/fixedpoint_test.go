package fixedpoint

import "testing"

func TestRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, -1, 17, -200, 1000} {
		f := FromInt(n)
		if got := f.Trunc(); got != n {
			t.Fatalf("FromInt(%d).Trunc() = %d", n, got)
		}
		if got := f.Round(); got != n {
			t.Fatalf("FromInt(%d).Round() = %d", n, got)
		}
	}
}

func TestArith(t *testing.T) {
	a := FromInt(3)
	b := FromInt(2)
	if got := a.Add(b).Trunc(); got != 5 {
		t.Fatalf("3+2 = %d", got)
	}
	if got := a.Sub(b).Trunc(); got != 1 {
		t.Fatalf("3-2 = %d", got)
	}
	if got := a.Mul(b).Trunc(); got != 6 {
		t.Fatalf("3*2 = %d", got)
	}
	if got := a.Div(b).Round(); got != 2 {
		t.Fatalf("3/2 rounded = %d", got)
	}
	if got := a.AddInt(4).Trunc(); got != 7 {
		t.Fatalf("3+4 = %d", got)
	}
	if got := a.MulInt(4).Trunc(); got != 12 {
		t.Fatalf("3*4 = %d", got)
	}
}

func TestRoundNearestTiesAwayFromZero(t *testing.T) {
	half := one / 2
	if got := Fix_t(half).Round(); got != 1 {
		t.Fatalf("round(0.5) = %d, want 1", got)
	}
	if got := Fix_t(-half).Round(); got != -1 {
		t.Fatalf("round(-0.5) = %d, want -1", got)
	}
}

func TestTruncTowardZero(t *testing.T) {
	// 7/2 = 3.5 in fixed point; Trunc must floor toward zero in both
	// directions, not just for positives.
	sevenHalves := FromInt(7).Div(FromInt(2))
	if got := sevenHalves.Trunc(); got != 3 {
		t.Fatalf("trunc(3.5) = %d, want 3", got)
	}
	negSevenHalves := FromInt(-7).Div(FromInt(2))
	if got := negSevenHalves.Trunc(); got != -3 {
		t.Fatalf("trunc(-3.5) = %d, want -3", got)
	}
}
