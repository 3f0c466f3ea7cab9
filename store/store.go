package store

import (
	"context"
	"time"

	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/subscription"
	"github.com/xraph/metered/user"
)

// Store is the unified storage interface for all Metered entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// Implementations provide plain CRUD; serialization of mutations per user
// is the engine's responsibility.
type Store interface {
	// User methods
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, userID id.UserID) (*user.User, error)
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	ListUsers(ctx context.Context, opts user.ListOpts) ([]*user.User, error)
	UpdateUser(ctx context.Context, u *user.User) error
	DeleteUser(ctx context.Context, userID id.UserID) error

	// Ledger methods
	AppendTransaction(ctx context.Context, txn *ledger.Transaction) error
	ListTransactions(ctx context.Context, userID id.UserID, opts ledger.ListOpts) ([]*ledger.Transaction, error)
	CountTransactions(ctx context.Context, userID id.UserID) (int64, error)

	// Plan methods
	CreatePlan(ctx context.Context, p *plan.Plan) error
	GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error)
	GetPlanByName(ctx context.Context, name string) (*plan.Plan, error)
	ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error)
	UpdatePlan(ctx context.Context, p *plan.Plan) error
	ArchivePlan(ctx context.Context, planID id.PlanID) error

	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	GetActiveSubscription(ctx context.Context, userID id.UserID) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, userID id.UserID, opts subscription.ListOpts) ([]*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error
	ListOverdueSubscriptions(ctx context.Context, asOf time.Time, limit int) ([]*subscription.Subscription, error)

	// Chat usage methods
	CreateChat(ctx context.Context, r *chat.Record) error
	GetChat(ctx context.Context, chatID id.ChatID) (*chat.Record, error)
	ListChats(ctx context.Context, userID id.UserID, opts chat.ListOpts) ([]*chat.Record, error)
	CountChatsSince(ctx context.Context, userID id.UserID, since time.Time) (int64, error)
	SumChatTokensSince(ctx context.Context, userID id.UserID, since time.Time) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
