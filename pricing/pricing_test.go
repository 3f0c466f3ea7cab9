package pricing

import (
	"errors"
	"testing"

	"github.com/xraph/metered/types"
)

func TestCost(t *testing.T) {
	calc := New()

	tests := []struct {
		name   string
		model  string
		in     int64
		out    int64
		expect string
	}{
		{"gpt-4 1k/1k", "gpt-4", 1000, 1000, "0.09"},
		{"gpt-3.5 1k/1k", "gpt-3.5-turbo", 1000, 1000, "0.0035"},
		{"llama-2 2k/2k", "llama-2", 2000, 2000, "0.002"},
		{"vip-gpt-4 1k/1k", "vip-gpt-4", 1000, 1000, "0.15"},
		{"unknown model default rates", "foo", 1000, 2000, "0.005"},
		{"zero tokens", "gpt-4", 0, 0, "0"},
		{"sub-1k rounding", "gpt-4", 10, 10, "0.0009"},
		{"rounds once on the sum", "gpt-4", 1, 4, "0.0003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Cost(tt.model, tt.in, tt.out)
			if err != nil {
				t.Fatalf("Cost: %v", err)
			}
			want := types.MustParseCredits(tt.expect)
			if got != want {
				t.Errorf("Cost(%q, %d, %d) = %s, want %s", tt.model, tt.in, tt.out, got, want)
			}
		})
	}
}

func TestCostRejectsNegativeTokens(t *testing.T) {
	calc := New()

	if _, err := calc.Cost("gpt-4", -1, 0); !errors.Is(err, ErrNegativeTokens) {
		t.Errorf("negative input: got %v", err)
	}
	if _, err := calc.Cost("gpt-4", 0, -1); !errors.Is(err, ErrNegativeTokens) {
		t.Errorf("negative output: got %v", err)
	}
}

func TestLookup(t *testing.T) {
	calc := New()

	m, ok := calc.Lookup("vip-gpt-4")
	if !ok || !m.RequiresVIP {
		t.Errorf("vip-gpt-4: ok=%v requiresVIP=%v", ok, m.RequiresVIP)
	}

	m, ok = calc.Lookup("admin-gpt-4")
	if !ok || !m.AdminOnly {
		t.Errorf("admin-gpt-4: ok=%v adminOnly=%v", ok, m.AdminOnly)
	}

	if _, ok := calc.Lookup("nonexistent"); ok {
		t.Error("nonexistent model should not resolve")
	}
}

func TestWithModelOverride(t *testing.T) {
	custom := Model{
		Name:        "in-house",
		RequiresVIP: true,
		InputPer1K:  types.MustParseCredits("0.01"),
		OutputPer1K: types.MustParseCredits("0.01"),
	}
	calc := New(WithModel(custom))

	got, err := calc.Cost("in-house", 500, 500)
	if err != nil {
		t.Fatal(err)
	}
	if want := types.MustParseCredits("0.01"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestModelsSorted(t *testing.T) {
	models := New().Models()
	if len(models) != 5 {
		t.Fatalf("expected 5 builtin models, got %d", len(models))
	}
	for i := 1; i < len(models); i++ {
		if models[i-1].Name >= models[i].Name {
			t.Errorf("models not sorted: %q before %q", models[i-1].Name, models[i].Name)
		}
	}
}
