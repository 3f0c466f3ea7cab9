package metered_test

import (
	"context"
	"testing"

	metered "github.com/xraph/metered"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/store/memory"
	"github.com/xraph/metered/user"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation work end to end.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		eng, err := metered.New(store, metered.WithSweepInterval(0))
		if err != nil {
			t.Fatal(err)
		}

		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer eng.Stop(ctx)

		// Plans define what a subscription costs and what it allows.
		p := &plan.Plan{
			Name:              "pro",
			Price:             metered.MustParseCredits("10"),
			DurationDays:      30,
			MaxChatsPerHour:   100,
			MaxTokensPerMonth: 1_000_000,
			VIPModels:         true,
		}
		if err := eng.CreatePlan(ctx, p); err != nil {
			t.Fatal(err)
		}

		// Users hold a credit balance funded through the ledger.
		u, err := eng.RegisterUser(ctx, "ada", "ada@example.com", user.RoleUser)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := eng.Credit(ctx, u.ID, metered.MustParseCredits("25"), "signup grant"); err != nil {
			t.Fatal(err)
		}
		if _, err := eng.Subscribe(ctx, u.ID, p.ID); err != nil {
			t.Fatal(err)
		}

		// Every chat request passes through the admission gate.
		rec, err := eng.AdmitChat(ctx, u.ID, "gpt-4", 1200, 800)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Cost != metered.MustParseCredits("0.084") {
			t.Errorf("Cost = %s, want 0.084", rec.Cost)
		}

		usage, err := eng.CurrentUsage(ctx, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if usage.ChatsThisHour != 1 || usage.TokensThisMonth != 2000 {
			t.Errorf("usage = %d chats, %d tokens", usage.ChatsThisHour, usage.TokensThisMonth)
		}
	})
}
