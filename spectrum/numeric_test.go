package spectrum

import "testing"

func TestNearlyEqual(t *testing.T) {
	cases := []struct {
		a, b, eps float64
		want      bool
	}{
		{1.0, 1.0, 1e-12, true},
		{1.0, 1.0 + 1e-13, 1e-12, true},
		{1.0, 1.1, 1e-12, false},
		{0, 0, 1e-12, true},
		{1e10, 1e10 * (1 + 1e-13), 1e-12, true},
	}
	for _, c := range cases {
		if got := NearlyEqual(c.a, c.b, c.eps); got != c.want {
			t.Fatalf("NearlyEqual(%g, %g, %g)=%v want=%v", c.a, c.b, c.eps, got, c.want)
		}
	}
}

func TestMaxAndMean(t *testing.T) {
	if Max(nil) != 0 {
		t.Fatalf("Max(nil) != 0")
	}
	if Max([]float64{-3, -1, -2}) != -1 {
		t.Fatalf("Max of negatives wrong")
	}
	if Mean([]float64{1, 2, 3, 4}) != 2.5 {
		t.Fatalf("Mean wrong")
	}
	if Mean(nil) != 0 {
		t.Fatalf("Mean(nil) != 0")
	}
}
