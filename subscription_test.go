package metered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	metered "github.com/xraph/metered"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/subscription"
	"github.com/xraph/metered/user"
)

func TestSubscribeDebitsPlanPrice(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	p := createPlan(t, e, &plan.Plan{
		Name:         "basic",
		Price:        metered.MustParseCredits("9.99"),
		DurationDays: 30,
	})
	creditUser(t, e, u.ID, "20")

	sub, err := e.Subscribe(ctx, u.ID, p.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if sub.Status != subscription.StatusActive {
		t.Errorf("Status = %s, want active", sub.Status)
	}
	wantEnd := sub.StartAt.Add(30 * 24 * time.Hour)
	if !sub.EndAt.Equal(wantEnd) {
		t.Errorf("EndAt = %s, want %s", sub.EndAt, wantEnd)
	}

	bal, err := e.Balance(ctx, u.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != metered.MustParseCredits("10.01") {
		t.Errorf("Balance = %s, want 10.01", bal)
	}

	txns, err := e.Transactions(ctx, u.ID, ledger.ListOpts{})
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	last := txns[len(txns)-1]
	if last.Kind != ledger.KindSubscription {
		t.Errorf("last txn kind = %s, want %s", last.Kind, ledger.KindSubscription)
	}
}

func TestSubscribeInsufficientBalanceLeavesNoSubscription(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	p := createPlan(t, e, &plan.Plan{
		Name:         "basic",
		Price:        metered.MustParseCredits("10"),
		DurationDays: 30,
	})
	creditUser(t, e, u.ID, "5")

	if _, err := e.Subscribe(ctx, u.ID, p.ID); !errors.Is(err, metered.ErrInsufficientBalance) {
		t.Fatalf("Subscribe = %v, want ErrInsufficientBalance", err)
	}

	if _, err := e.CurrentSubscription(ctx, u.ID); !errors.Is(err, metered.ErrNoActiveSubscription) {
		t.Errorf("CurrentSubscription = %v, want ErrNoActiveSubscription", err)
	}
	bal, _ := e.Balance(ctx, u.ID)
	if bal != metered.MustParseCredits("5") {
		t.Errorf("Balance = %s, want 5", bal)
	}
}

func TestSubscribeFailureKeepsPriorSubscription(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	basic := createPlan(t, e, &plan.Plan{Name: "basic", Price: metered.MustParseCredits("5"), DurationDays: 30})
	pro := createPlan(t, e, &plan.Plan{Name: "pro", Price: metered.MustParseCredits("15"), DurationDays: 30})
	creditUser(t, e, u.ID, "12")

	first, err := e.Subscribe(ctx, u.ID, basic.ID)
	if err != nil {
		t.Fatalf("Subscribe(basic): %v", err)
	}

	// 7 remaining; the upgrade must fail and leave basic untouched.
	if _, err := e.Subscribe(ctx, u.ID, pro.ID); !errors.Is(err, metered.ErrInsufficientBalance) {
		t.Fatalf("Subscribe(pro) = %v, want ErrInsufficientBalance", err)
	}

	current, err := e.CurrentSubscription(ctx, u.ID)
	if err != nil {
		t.Fatalf("CurrentSubscription: %v", err)
	}
	if current.ID != first.ID {
		t.Errorf("current = %s, want %s", current.ID, first.ID)
	}
	if current.Status != subscription.StatusActive {
		t.Errorf("Status = %s, want active", current.Status)
	}

	bal, _ := e.Balance(ctx, u.ID)
	if bal != metered.MustParseCredits("7") {
		t.Errorf("Balance = %s, want 7", bal)
	}
}

func TestSubscribeFreePlan(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	p := createPlan(t, e, &plan.Plan{
		Name:         "free",
		DurationDays: 7,
	})

	if _, err := e.Subscribe(ctx, u.ID, p.ID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	txns, err := e.Transactions(ctx, u.ID, ledger.ListOpts{})
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("free plan wrote %d transactions, want 0", len(txns))
	}
}

func TestSubscribeReplacesPriorSubscription(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	basic := createPlan(t, e, &plan.Plan{Name: "basic", Price: metered.MustParseCredits("5"), DurationDays: 30})
	pro := createPlan(t, e, &plan.Plan{Name: "pro", Price: metered.MustParseCredits("15"), DurationDays: 30})
	creditUser(t, e, u.ID, "50")

	first, err := e.Subscribe(ctx, u.ID, basic.ID)
	if err != nil {
		t.Fatalf("Subscribe(basic): %v", err)
	}
	second, err := e.Subscribe(ctx, u.ID, pro.ID)
	if err != nil {
		t.Fatalf("Subscribe(pro): %v", err)
	}

	current, err := e.CurrentSubscription(ctx, u.ID)
	if err != nil {
		t.Fatalf("CurrentSubscription: %v", err)
	}
	if current.ID != second.ID {
		t.Errorf("current = %s, want %s", current.ID, second.ID)
	}

	subs, err := e.Subscriptions(ctx, u.ID, subscription.ListOpts{})
	if err != nil {
		t.Fatalf("Subscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subs))
	}
	for _, s := range subs {
		if s.ID == first.ID && s.Status != subscription.StatusReplaced {
			t.Errorf("prior subscription status = %s, want replaced", s.Status)
		}
	}

	bal, _ := e.Balance(ctx, u.ID)
	if bal != metered.MustParseCredits("30") {
		t.Errorf("Balance = %s, want 30", bal)
	}
}

func TestSubscribeArchivedPlan(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	p := createPlan(t, e, &plan.Plan{Name: "old", Price: metered.MustParseCredits("5"), DurationDays: 30})
	creditUser(t, e, u.ID, "50")

	if err := e.ArchivePlan(ctx, p.ID); err != nil {
		t.Fatalf("ArchivePlan: %v", err)
	}
	if _, err := e.Subscribe(ctx, u.ID, p.ID); !errors.Is(err, metered.ErrPlanArchived) {
		t.Errorf("Subscribe = %v, want ErrPlanArchived", err)
	}
}

func TestLazyExpiry(t *testing.T) {
	rec := &capturePlugin{}
	e := newTestEngine(t, metered.WithPlugin(rec))
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	p := createPlan(t, e, &plan.Plan{Name: "basic", DurationDays: 30})

	sub, err := e.Subscribe(ctx, u.ID, p.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Backdate the term end so the next read finds it overdue.
	sub.EndAt = time.Now().UTC().Add(-time.Minute)
	if err := e.Store().UpdateSubscription(ctx, sub); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}

	if _, err := e.CurrentSubscription(ctx, u.ID); !errors.Is(err, metered.ErrNoActiveSubscription) {
		t.Fatalf("CurrentSubscription = %v, want ErrNoActiveSubscription", err)
	}

	subs, err := e.Subscriptions(ctx, u.ID, subscription.ListOpts{})
	if err != nil {
		t.Fatalf("Subscriptions: %v", err)
	}
	if len(subs) != 1 || subs[0].Status != subscription.StatusExpired {
		t.Errorf("subscription not marked expired: %+v", subs[0])
	}
	if got := rec.count("subscription.expired"); got != 1 {
		t.Errorf("expiry events = %d, want 1", got)
	}

	active, err := e.IsSubscriptionActive(ctx, u.ID)
	if err != nil {
		t.Fatalf("IsSubscriptionActive: %v", err)
	}
	if active {
		t.Error("expired subscription reported active")
	}
}

func TestCurrentUsage(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	p := createPlan(t, e, &plan.Plan{
		Name:              "basic",
		DurationDays:      30,
		MaxChatsPerHour:   10,
		MaxTokensPerMonth: 100000,
	})
	creditUser(t, e, u.ID, "10")

	sub, err := e.Subscribe(ctx, u.ID, p.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := e.AdmitChat(ctx, u.ID, "gpt-3.5-turbo", 500, 300); err != nil {
		t.Fatalf("AdmitChat: %v", err)
	}

	usage, err := e.CurrentUsage(ctx, u.ID)
	if err != nil {
		t.Fatalf("CurrentUsage: %v", err)
	}
	if usage.Plan == nil || usage.Plan.ID != p.ID {
		t.Fatalf("usage.Plan = %+v, want plan %s", usage.Plan, p.ID)
	}
	if usage.ChatsThisHour != 1 {
		t.Errorf("ChatsThisHour = %d, want 1", usage.ChatsThisHour)
	}
	if usage.TokensThisMonth != 800 {
		t.Errorf("TokensThisMonth = %d, want 800", usage.TokensThisMonth)
	}
	if !usage.PeriodEnd.Equal(sub.EndAt) {
		t.Errorf("PeriodEnd = %s, want %s", usage.PeriodEnd, sub.EndAt)
	}
}

func TestCurrentUsageWithoutSubscription(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	creditUser(t, e, u.ID, "7")

	usage, err := e.CurrentUsage(ctx, u.ID)
	if err != nil {
		t.Fatalf("CurrentUsage: %v", err)
	}
	if usage.Plan != nil {
		t.Errorf("Plan = %+v, want nil", usage.Plan)
	}
	if usage.ChatsThisHour != 0 || usage.TokensThisMonth != 0 {
		t.Errorf("counters = %d/%d, want 0/0", usage.ChatsThisHour, usage.TokensThisMonth)
	}
	if usage.Balance != metered.MustParseCredits("7") {
		t.Errorf("Balance = %s, want 7", usage.Balance)
	}
}

func TestCanSendChatRequiresSubscriptionForAdmins(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	admin := registerUser(t, e, "root", user.RoleAdmin)

	ok, err := e.CanSendChat(ctx, admin.ID)
	if err != nil {
		t.Fatalf("CanSendChat: %v", err)
	}
	if ok {
		t.Error("admin without subscription should not pass the chat gate")
	}
}
