package metered_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	metered "github.com/xraph/metered"
	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/store/memory"
	"github.com/xraph/metered/subscription"
	"github.com/xraph/metered/user"
)

func newTestEngine(t *testing.T, opts ...metered.Option) *metered.Engine {
	t.Helper()
	base := []metered.Option{
		metered.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		metered.WithSweepInterval(0),
	}
	e, err := metered.New(memory.New(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func registerUser(t *testing.T, e *metered.Engine, username string, role user.Role) *user.User {
	t.Helper()
	u, err := e.RegisterUser(context.Background(), username, username+"@example.com", role)
	if err != nil {
		t.Fatalf("RegisterUser(%s): %v", username, err)
	}
	return u
}

func createPlan(t *testing.T, e *metered.Engine, p *plan.Plan) *plan.Plan {
	t.Helper()
	if err := e.CreatePlan(context.Background(), p); err != nil {
		t.Fatalf("CreatePlan(%s): %v", p.Name, err)
	}
	return p
}

func creditUser(t *testing.T, e *metered.Engine, userID id.UserID, amount string) {
	t.Helper()
	if _, err := e.Credit(context.Background(), userID, metered.MustParseCredits(amount), "test top-up"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := metered.New(nil); !errors.Is(err, metered.ErrInvalidInput) {
		t.Errorf("New(nil) = %v, want ErrInvalidInput", err)
	}
}

func TestStartStop(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// capturePlugin records every event it receives.
type capturePlugin struct {
	mu       sync.Mutex
	events   []string
	denials  []error
	breaches []string
}

func (p *capturePlugin) Name() string { return "capture" }

func (p *capturePlugin) add(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePlugin) OnPlanCreated(_ context.Context, _ *plan.Plan) error {
	p.add("plan.created")
	return nil
}

func (p *capturePlugin) OnPlanArchived(_ context.Context, _ id.PlanID) error {
	p.add("plan.archived")
	return nil
}

func (p *capturePlugin) OnSubscriptionActivated(_ context.Context, _ *subscription.Subscription) error {
	p.add("subscription.activated")
	return nil
}

func (p *capturePlugin) OnSubscriptionExpired(_ context.Context, _ *subscription.Subscription) error {
	p.add("subscription.expired")
	return nil
}

func (p *capturePlugin) OnCredited(_ context.Context, _ *ledger.Transaction) error {
	p.add("credited")
	return nil
}

func (p *capturePlugin) OnDebited(_ context.Context, _ *ledger.Transaction) error {
	p.add("debited")
	return nil
}

func (p *capturePlugin) OnChatAdmitted(_ context.Context, _ *chat.Record) error {
	p.add("chat.admitted")
	return nil
}

func (p *capturePlugin) OnAdmissionDenied(_ context.Context, _ id.UserID, _ string, reason error) error {
	p.mu.Lock()
	p.denials = append(p.denials, reason)
	p.mu.Unlock()
	p.add("admission.denied")
	return nil
}

func (p *capturePlugin) OnQuotaExceeded(_ context.Context, _ id.UserID, limit string, _, _ int64) error {
	p.mu.Lock()
	p.breaches = append(p.breaches, limit)
	p.mu.Unlock()
	p.add("quota.exceeded")
	return nil
}

func (p *capturePlugin) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == event {
			n++
		}
	}
	return n
}

func TestPluginEvents(t *testing.T) {
	rec := &capturePlugin{}
	e := newTestEngine(t, metered.WithPlugin(rec))
	ctx := context.Background()

	u := registerUser(t, e, "alice", user.RoleUser)
	p := createPlan(t, e, &plan.Plan{
		Name:         "basic",
		Price:        metered.MustParseCredits("5"),
		DurationDays: 30,
	})
	creditUser(t, e, u.ID, "10")

	if _, err := e.Subscribe(ctx, u.ID, p.ID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := e.AdmitChat(ctx, u.ID, "gpt-4", 1000, 1000); err != nil {
		t.Fatalf("AdmitChat: %v", err)
	}
	if err := e.ArchivePlan(ctx, p.ID); err != nil {
		t.Fatalf("ArchivePlan: %v", err)
	}

	for event, want := range map[string]int{
		"plan.created":           1,
		"plan.archived":          1,
		"credited":               1,
		"debited":                2, // subscription price + chat cost
		"subscription.activated": 1,
		"chat.admitted":          1,
	} {
		if got := rec.count(event); got != want {
			t.Errorf("%s events = %d, want %d", event, got, want)
		}
	}
}
