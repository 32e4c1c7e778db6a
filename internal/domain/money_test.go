package domain

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
	}{
		{"25", 2500},
		{"25.5", 2550},
		{"25.00", 2500},
		{"0.01", 1},
		{"10.00", 1000},
		{" 7.30 ", 730},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q) unexpected error: %v", c.in, err)
		}
		if got != c.cents {
			t.Errorf("ParseAmount(%q) = %d, want %d", c.in, got, c.cents)
		}
	}
}

func TestParseAmountRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "-5", "+5", "1.234", "abc", "1.2x", ".50", "10,50", "25.", "92233720368547759.00"} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseAmount(%q) = %v, want ErrInvalidAmount", in, err)
		}
	}
}

func TestFormatCents(t *testing.T) {
	cases := map[int64]string{
		2500: "25.00",
		1:    "0.01",
		0:    "0.00",
		-730: "-7.30",
		105:  "1.05",
	}
	for cents, want := range cases {
		if got := FormatCents(cents); got != want {
			t.Errorf("FormatCents(%d) = %q, want %q", cents, got, want)
		}
	}
}

// Crediting then debiting the same amount must return exactly to the prior
// value; cents arithmetic has no rounding to drift.
func TestAmountRoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "10.00", "999999.99", "0.10"} {
		cents, err := ParseAmount(s)
		if err != nil {
			t.Fatal(err)
		}
		balance := int64(12345)
		after := balance + cents - cents
		if after != balance {
			t.Errorf("round trip of %s drifted: %d != %d", s, after, balance)
		}
		back, err := ParseAmount(FormatCents(cents))
		if err != nil || back != cents {
			t.Errorf("format/parse round trip of %s: got %d, err %v", s, back, err)
		}
	}
}
