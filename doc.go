// Package metered provides a composable metered-access control layer for
// chat and LLM gateways.
//
// Metered is designed as a library, not a service. Import it directly into
// your Go application and put AdmitChat in front of every model call. It
// provides:
//
//   - An append-only credit ledger with exact integer arithmetic
//   - A plan catalog with per-hour chat and per-month token limits
//   - Subscription lifecycle with lazy expiry and a background sweeper
//   - Token-based pricing with a per-model rate table
//   - A single admission gate combining access, quota and balance checks
//   - Pluggable identity (JWT built-in) and lifecycle plugins
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/metered"
//	    "github.com/xraph/metered/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	eng, err := metered.New(store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start the engine (begins the expiry sweeper)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop(ctx)
//
// # Core Concepts
//
// Plans define what a subscription costs and what it allows:
//
//	p := &plan.Plan{
//	    Name:              "pro",
//	    Price:             metered.MustParseCredits("10"),
//	    DurationDays:      30,
//	    MaxChatsPerHour:   100,
//	    MaxTokensPerMonth: 1_000_000,
//	    VIPModels:         true,
//	}
//	err := eng.CreatePlan(ctx, p)
//
// Users hold a credit balance funded through the ledger:
//
//	u, err := eng.RegisterUser(ctx, "ada", "ada@example.com", user.RoleUser)
//	_, err = eng.Credit(ctx, u.ID, metered.MustParseCredits("25"), "signup grant")
//
// Every chat request passes through the admission gate, which checks model
// access and plan quotas, prices the request by token counts, charges the
// balance and records the usage:
//
//	rec, err := eng.AdmitChat(ctx, u.ID, "gpt-4", 1200, 800)
//	if metered.IsDenied(err) {
//	    // access, quota or balance refusal; nothing was charged
//	}
//
// All mutations for one user are serialized inside the engine, so
// concurrent requests can never overdraw a balance.
package metered
