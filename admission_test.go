package metered_test

import (
	"context"
	"errors"
	"testing"

	metered "github.com/xraph/metered"
	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/user"
)

// subscribedUser registers a user, funds them and puts them on a fresh plan.
func subscribedUser(t *testing.T, e *metered.Engine, username string, role user.Role, p *plan.Plan, balance string) *user.User {
	t.Helper()
	ctx := context.Background()
	u := registerUser(t, e, username, role)
	creditUser(t, e, u.ID, balance)
	if _, err := e.Subscribe(ctx, u.ID, p.ID); err != nil {
		t.Fatalf("Subscribe(%s): %v", username, err)
	}
	return u
}

func TestAdmitChat(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "basic", DurationDays: 30})
	u := subscribedUser(t, e, "alice", user.RoleUser, p, "10")

	rec, err := e.AdmitChat(ctx, u.ID, "gpt-4", 1000, 1000)
	if err != nil {
		t.Fatalf("AdmitChat: %v", err)
	}
	if rec.Cost != metered.MustParseCredits("0.09") {
		t.Errorf("Cost = %s, want 0.09", rec.Cost)
	}
	if rec.TotalTokens() != 2000 {
		t.Errorf("TotalTokens = %d, want 2000", rec.TotalTokens())
	}

	bal, _ := e.Balance(ctx, u.ID)
	if bal != metered.MustParseCredits("9.91") {
		t.Errorf("Balance = %s, want 9.91", bal)
	}

	chats, err := e.Chats(ctx, u.ID, chat.ListOpts{})
	if err != nil {
		t.Fatalf("Chats: %v", err)
	}
	if len(chats) != 1 || chats[0].ID != rec.ID {
		t.Errorf("history = %+v, want the admitted record", chats)
	}
}

func TestAdmitChatZeroCostSkipsDebit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "basic", DurationDays: 30})
	u := subscribedUser(t, e, "alice", user.RoleUser, p, "10")

	rec, err := e.AdmitChat(ctx, u.ID, "gpt-4", 0, 0)
	if err != nil {
		t.Fatalf("AdmitChat: %v", err)
	}
	if !rec.Cost.IsZero() {
		t.Errorf("Cost = %s, want 0", rec.Cost)
	}
	bal, _ := e.Balance(ctx, u.ID)
	if bal != metered.MustParseCredits("10") {
		t.Errorf("Balance = %s, want 10", bal)
	}
}

func TestAdmitChatInactiveUser(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "basic", DurationDays: 30})
	u := subscribedUser(t, e, "alice", user.RoleUser, p, "10")

	if err := e.DeactivateUser(ctx, u.ID); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if _, err := e.AdmitChat(ctx, u.ID, "gpt-4", 100, 100); !errors.Is(err, metered.ErrUserInactive) {
		t.Errorf("AdmitChat = %v, want ErrUserInactive", err)
	}
}

func TestAdmitChatWithoutSubscription(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	creditUser(t, e, u.ID, "10")

	// Access fails before quota: no subscription means no model access
	// for non-admins.
	if _, err := e.AdmitChat(ctx, u.ID, "gpt-4", 100, 100); !errors.Is(err, metered.ErrAccessDenied) {
		t.Errorf("AdmitChat = %v, want ErrAccessDenied", err)
	}
}

func TestAdmitChatModelGating(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	base := createPlan(t, e, &plan.Plan{Name: "basic", DurationDays: 30})
	vip := createPlan(t, e, &plan.Plan{Name: "vip", DurationDays: 30, VIPModels: true})

	alice := subscribedUser(t, e, "alice", user.RoleUser, base, "10")
	bob := subscribedUser(t, e, "bob", user.RoleVIP, vip, "10")
	root := subscribedUser(t, e, "root", user.RoleAdmin, base, "10")

	// VIP-flagged models follow the plan, not the role.
	if _, err := e.AdmitChat(ctx, alice.ID, "vip-gpt-4", 100, 100); !errors.Is(err, metered.ErrAccessDenied) {
		t.Errorf("basic plan on vip model = %v, want ErrAccessDenied", err)
	}
	if _, err := e.AdmitChat(ctx, bob.ID, "vip-gpt-4", 100, 100); err != nil {
		t.Errorf("vip plan on vip model: %v", err)
	}

	// Admin-only models are closed to everyone else, even VIP plans.
	if _, err := e.AdmitChat(ctx, bob.ID, "admin-gpt-4", 100, 100); !errors.Is(err, metered.ErrAccessDenied) {
		t.Errorf("vip on admin model = %v, want ErrAccessDenied", err)
	}
	if _, err := e.AdmitChat(ctx, root.ID, "admin-gpt-4", 100, 100); err != nil {
		t.Errorf("admin on admin model: %v", err)
	}

	// Admins bypass VIP gating regardless of plan.
	if _, err := e.AdmitChat(ctx, root.ID, "vip-gpt-4", 100, 100); err != nil {
		t.Errorf("admin on vip model: %v", err)
	}
}

func TestAdmitChatUnknownModel(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "basic", DurationDays: 30})
	u := subscribedUser(t, e, "alice", user.RoleUser, p, "10")

	// Unregistered names are priced at default rates with no gating.
	rec, err := e.AdmitChat(ctx, u.ID, "mystery-model", 1000, 1000)
	if err != nil {
		t.Fatalf("AdmitChat: %v", err)
	}
	if rec.Cost != metered.MustParseCredits("0.003") {
		t.Errorf("Cost = %s, want 0.003", rec.Cost)
	}
}

func TestAdmitChatChatQuota(t *testing.T) {
	rec := &capturePlugin{}
	e := newTestEngine(t, metered.WithPlugin(rec))
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "tight", DurationDays: 30, MaxChatsPerHour: 2})
	u := subscribedUser(t, e, "alice", user.RoleUser, p, "10")

	for i := 0; i < 2; i++ {
		if _, err := e.AdmitChat(ctx, u.ID, "llama-2", 100, 100); err != nil {
			t.Fatalf("chat %d: %v", i, err)
		}
	}
	if _, err := e.AdmitChat(ctx, u.ID, "llama-2", 100, 100); !errors.Is(err, metered.ErrRateLimitExceeded) {
		t.Fatalf("third chat = %v, want ErrRateLimitExceeded", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.breaches) != 1 || rec.breaches[0] != "chats_per_hour" {
		t.Errorf("breaches = %v, want [chats_per_hour]", rec.breaches)
	}
}

func TestAdmitChatTokenQuota(t *testing.T) {
	rec := &capturePlugin{}
	e := newTestEngine(t, metered.WithPlugin(rec))
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "tight", DurationDays: 30, MaxTokensPerMonth: 1000})
	u := subscribedUser(t, e, "alice", user.RoleUser, p, "10")

	// First chat lands exactly on the limit; the boundary is inclusive,
	// so the next chat is refused.
	if _, err := e.AdmitChat(ctx, u.ID, "llama-2", 500, 500); err != nil {
		t.Fatalf("first chat: %v", err)
	}
	if _, err := e.AdmitChat(ctx, u.ID, "llama-2", 1, 0); !errors.Is(err, metered.ErrRateLimitExceeded) {
		t.Fatalf("second chat = %v, want ErrRateLimitExceeded", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.breaches) != 1 || rec.breaches[0] != "tokens_per_month" {
		t.Errorf("breaches = %v, want [tokens_per_month]", rec.breaches)
	}
}

func TestAdmitChatInsufficientBalanceLeavesNoRecord(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "free", DurationDays: 30})
	u := subscribedUser(t, e, "alice", user.RoleUser, p, "0.01")

	if _, err := e.AdmitChat(ctx, u.ID, "gpt-4", 1000, 1000); !errors.Is(err, metered.ErrInsufficientBalance) {
		t.Fatalf("AdmitChat = %v, want ErrInsufficientBalance", err)
	}

	chats, err := e.Chats(ctx, u.ID, chat.ListOpts{})
	if err != nil {
		t.Fatalf("Chats: %v", err)
	}
	if len(chats) != 0 {
		t.Errorf("refused chat left %d records", len(chats))
	}
	bal, _ := e.Balance(ctx, u.ID)
	if bal != metered.MustParseCredits("0.01") {
		t.Errorf("Balance = %s, want 0.01", bal)
	}
}

func TestAdmitChatNegativeTokens(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "basic", DurationDays: 30})
	u := subscribedUser(t, e, "alice", user.RoleUser, p, "10")

	if _, err := e.AdmitChat(ctx, u.ID, "gpt-4", -1, 100); !errors.Is(err, metered.ErrInvalidInput) {
		t.Errorf("AdmitChat = %v, want ErrInvalidInput", err)
	}
}

func TestAvailableModels(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	base := createPlan(t, e, &plan.Plan{Name: "basic", DurationDays: 30})
	vip := createPlan(t, e, &plan.Plan{Name: "vip", DurationDays: 30, VIPModels: true})

	alice := subscribedUser(t, e, "alice", user.RoleUser, base, "1")
	bob := subscribedUser(t, e, "bob", user.RoleVIP, vip, "1")
	root := registerUser(t, e, "root", user.RoleAdmin)

	names := func(t *testing.T, userID metered.ID) map[string]bool {
		t.Helper()
		models, err := e.AvailableModels(ctx, userID)
		if err != nil {
			t.Fatalf("AvailableModels: %v", err)
		}
		set := make(map[string]bool, len(models))
		for _, m := range models {
			set[m.Name] = true
		}
		return set
	}

	got := names(t, alice.ID)
	if got["vip-gpt-4"] || got["admin-gpt-4"] {
		t.Errorf("basic plan sees gated models: %v", got)
	}
	if !got["gpt-4"] {
		t.Error("basic plan missing open models")
	}

	got = names(t, bob.ID)
	if !got["vip-gpt-4"] || got["admin-gpt-4"] {
		t.Errorf("vip plan model set wrong: %v", got)
	}

	got = names(t, root.ID)
	if !got["vip-gpt-4"] || !got["admin-gpt-4"] {
		t.Errorf("admin model set wrong: %v", got)
	}
}

func TestRateLimits(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "tight", DurationDays: 30, MaxChatsPerHour: 1})
	u := subscribedUser(t, e, "alice", user.RoleUser, p, "10")

	status, err := e.RateLimits(ctx, u.ID)
	if err != nil {
		t.Fatalf("RateLimits: %v", err)
	}
	if !status.CanSendChat {
		t.Error("fresh subscriber should be under quota")
	}

	if _, err := e.AdmitChat(ctx, u.ID, "llama-2", 10, 10); err != nil {
		t.Fatalf("AdmitChat: %v", err)
	}

	status, err = e.RateLimits(ctx, u.ID)
	if err != nil {
		t.Fatalf("RateLimits: %v", err)
	}
	if status.CanSendChat {
		t.Error("subscriber at the limit should be over quota")
	}
	if status.Usage.ChatsThisHour != 1 {
		t.Errorf("ChatsThisHour = %d, want 1", status.Usage.ChatsThisHour)
	}
}

func TestChatOwnership(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "basic", DurationDays: 30})
	alice := subscribedUser(t, e, "alice", user.RoleUser, p, "10")
	bob := registerUser(t, e, "bob", user.RoleUser)
	root := registerUser(t, e, "root", user.RoleAdmin)

	rec, err := e.AdmitChat(ctx, alice.ID, "llama-2", 10, 10)
	if err != nil {
		t.Fatalf("AdmitChat: %v", err)
	}

	if _, err := e.Chat(ctx, alice.ID, rec.ID); err != nil {
		t.Errorf("owner read: %v", err)
	}
	if _, err := e.Chat(ctx, bob.ID, rec.ID); !errors.Is(err, metered.ErrForbidden) {
		t.Errorf("stranger read = %v, want ErrForbidden", err)
	}
	if _, err := e.Chat(ctx, root.ID, rec.ID); err != nil {
		t.Errorf("admin read: %v", err)
	}
}

func TestChatStats(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := createPlan(t, e, &plan.Plan{Name: "basic", DurationDays: 30})
	u := subscribedUser(t, e, "alice", user.RoleUser, p, "10")

	if _, err := e.AdmitChat(ctx, u.ID, "gpt-4", 1000, 1000); err != nil {
		t.Fatalf("AdmitChat: %v", err)
	}
	if _, err := e.AdmitChat(ctx, u.ID, "llama-2", 500, 500); err != nil {
		t.Fatalf("AdmitChat: %v", err)
	}

	stats, err := e.ChatStats(ctx, u.ID)
	if err != nil {
		t.Fatalf("ChatStats: %v", err)
	}
	if stats.TotalChats != 2 {
		t.Errorf("TotalChats = %d, want 2", stats.TotalChats)
	}
	if stats.TotalTokens != 3000 {
		t.Errorf("TotalTokens = %d, want 3000", stats.TotalTokens)
	}
	if got := stats.ByModel["gpt-4"]; got.Chats != 1 || got.Tokens != 2000 {
		t.Errorf("gpt-4 stats = %+v", got)
	}
}
