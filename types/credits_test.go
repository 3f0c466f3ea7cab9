package types

import (
	"encoding/json"
	"testing"
)

func TestParseCredits(t *testing.T) {
	tests := []struct {
		in    string
		units int64
		str   string
	}{
		{"0", 0, "0.0000"},
		{"1", 10000, "1.0000"},
		{"0.0015", 15, "0.0015"},
		{"0.03", 300, "0.0300"},
		{"12.5", 125000, "12.5000"},
		{"-0.09", -900, "-0.0900"},
		{"+2.25", 22500, "2.2500"},
		{"100.0001", 1000001, "100.0001"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCredits(tt.in)
			if err != nil {
				t.Fatalf("ParseCredits(%q): %v", tt.in, err)
			}
			if c.Units() != tt.units {
				t.Errorf("Units: got %d, want %d", c.Units(), tt.units)
			}
			if c.String() != tt.str {
				t.Errorf("String: got %s, want %s", c.String(), tt.str)
			}
		})
	}
}

func TestParseCreditsRejects(t *testing.T) {
	for _, in := range []string{"", "-", "1.00001", "abc", "1.2.3", "1.-5", "1.+5", "1e3", "--1", "1.2a"} {
		if _, err := ParseCredits(in); err == nil {
			t.Errorf("ParseCredits(%q): expected error", in)
		}
	}
}

func TestCreditsArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Credits
		expected Credits
	}{
		{"Add", func() Credits { return FromUnits(100).Add(FromUnits(200)) }, FromUnits(300)},
		{"Sub", func() Credits { return FromUnits(500).Sub(FromUnits(200)) }, FromUnits(300)},
		{"Neg", func() Credits { return FromUnits(100).Neg() }, FromUnits(-100)},
		{"Sum", func() Credits { return SumCredits(FromInt(1), FromUnits(15), FromUnits(-15)) }, FromInt(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCreditsJSON(t *testing.T) {
	c := MustParseCredits("0.0090")
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"0.0090"` {
		t.Errorf("Marshal: got %s", data)
	}

	var back Credits
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != c {
		t.Errorf("round trip: got %v, want %v", back, c)
	}

	// Bare numbers are also accepted.
	if err := json.Unmarshal([]byte(`0.05`), &back); err != nil {
		t.Fatal(err)
	}
	if back != MustParseCredits("0.05") {
		t.Errorf("bare number: got %v", back)
	}
}

func TestCreditsComparisons(t *testing.T) {
	if !FromUnits(-1).IsNegative() || FromUnits(1).IsNegative() {
		t.Error("IsNegative")
	}
	if !FromUnits(1).IsPositive() || FromUnits(0).IsPositive() {
		t.Error("IsPositive")
	}
	if !ZeroCredits.IsZero() {
		t.Error("IsZero")
	}
	if !FromUnits(5).LessThan(FromUnits(6)) || FromUnits(6).LessThan(FromUnits(5)) {
		t.Error("LessThan")
	}
}
