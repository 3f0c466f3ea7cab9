// Package memory provides an in-process Store for tests and single-node use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/metered"
	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/store"
	"github.com/xraph/metered/subscription"
	"github.com/xraph/metered/user"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// User storage
	users map[string]*user.User

	// Transaction trail, append-only, insertion order
	transactions []ledger.Transaction

	// Plan storage
	plans map[string]*plan.Plan

	// Subscription storage, insertion order preserved for listings
	subscriptions []*subscription.Subscription

	// Chat usage records, append-only, insertion order
	chats []chat.Record
}

func New() *Store {
	return &Store{
		users:         make(map[string]*user.User),
		transactions:  make([]ledger.Transaction, 0),
		plans:         make(map[string]*plan.Plan),
		subscriptions: make([]*subscription.Subscription, 0),
		chats:         make([]chat.Record, 0),
	}
}

// User Store implementation

func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID.String()]; exists {
		return metered.ErrAlreadyExists
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return metered.ErrDuplicateUsername
		}
		if existing.Email == u.Email {
			return metered.ErrDuplicateEmail
		}
	}

	cp := *u
	s.users[u.ID.String()] = &cp
	return nil
}

func (s *Store) GetUser(_ context.Context, userID id.UserID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[userID.String()]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, metered.ErrUserNotFound
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, metered.ErrUserNotFound
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, metered.ErrUserNotFound
}

func (s *Store) ListUsers(_ context.Context, opts user.ListOpts) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		result = append(result, &cp)
	}
	sortByCreated(result, func(u *user.User) time.Time { return u.CreatedAt })
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID.String()]; !exists {
		return metered.ErrUserNotFound
	}
	cp := *u
	s.users[u.ID.String()] = &cp
	return nil
}

func (s *Store) DeleteUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[userID.String()]; !exists {
		return metered.ErrUserNotFound
	}
	delete(s.users, userID.String())
	return nil
}

// Ledger Store implementation

func (s *Store) AppendTransaction(_ context.Context, txn *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, *txn)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, userID id.UserID, opts ledger.ListOpts) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*ledger.Transaction, 0)
	for i := range s.transactions {
		if s.transactions[i].UserID.String() == userID.String() {
			cp := s.transactions[i]
			result = append(result, &cp)
		}
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountTransactions(_ context.Context, userID id.UserID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.transactions {
		if s.transactions[i].UserID.String() == userID.String() {
			count++
		}
	}
	return count, nil
}

// Plan Store implementation

func (s *Store) CreatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[p.ID.String()]; exists {
		return metered.ErrAlreadyExists
	}
	for _, existing := range s.plans {
		if existing.Name == p.Name {
			return metered.ErrDuplicatePlan
		}
	}

	cp := *p
	s.plans[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetPlan(_ context.Context, planID id.PlanID) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.plans[planID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, metered.ErrPlanNotFound
}

func (s *Store) GetPlanByName(_ context.Context, name string) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.plans {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, metered.ErrPlanNotFound
}

func (s *Store) ListPlans(_ context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*plan.Plan, 0)
	for _, p := range s.plans {
		if opts.Status == "" || p.Status == opts.Status {
			cp := *p
			result = append(result, &cp)
		}
	}
	sortByCreated(result, func(p *plan.Plan) time.Time { return p.CreatedAt })
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[p.ID.String()]; !exists {
		return metered.ErrPlanNotFound
	}
	cp := *p
	s.plans[p.ID.String()] = &cp
	return nil
}

func (s *Store) ArchivePlan(_ context.Context, planID id.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, exists := s.plans[planID.String()]; exists {
		p.Status = plan.StatusArchived
		return nil
	}
	return metered.ErrPlanNotFound
}

// Subscription Store implementation

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.ID.String() == sub.ID.String() {
			return metered.ErrAlreadyExists
		}
	}
	cp := *sub
	s.subscriptions = append(s.subscriptions, &cp)
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.ID.String() == subID.String() {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, metered.ErrSubscriptionNotFound
}

func (s *Store) GetActiveSubscription(_ context.Context, userID id.UserID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.UserID.String() == userID.String() && sub.Status == subscription.StatusActive {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, metered.ErrNoActiveSubscription
}

func (s *Store) ListSubscriptions(_ context.Context, userID id.UserID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.UserID.String() == userID.String() {
			if opts.Status == "" || sub.Status == opts.Status {
				cp := *sub
				result = append(result, &cp)
			}
		}
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.subscriptions {
		if existing.ID.String() == sub.ID.String() {
			cp := *sub
			s.subscriptions[i] = &cp
			return nil
		}
	}
	return metered.ErrSubscriptionNotFound
}

func (s *Store) ListOverdueSubscriptions(_ context.Context, asOf time.Time, limit int) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.Status == subscription.StatusActive && asOf.After(sub.EndAt) {
			cp := *sub
			result = append(result, &cp)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// Chat Store implementation

func (s *Store) CreateChat(_ context.Context, r *chat.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats = append(s.chats, *r)
	return nil
}

func (s *Store) GetChat(_ context.Context, chatID id.ChatID) (*chat.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.chats {
		if s.chats[i].ID.String() == chatID.String() {
			cp := s.chats[i]
			return &cp, nil
		}
	}
	return nil, metered.ErrChatNotFound
}

func (s *Store) ListChats(_ context.Context, userID id.UserID, opts chat.ListOpts) ([]*chat.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*chat.Record, 0)
	for i := range s.chats {
		if s.chats[i].UserID.String() == userID.String() {
			cp := s.chats[i]
			result = append(result, &cp)
		}
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountChatsSince(_ context.Context, userID id.UserID, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.chats {
		r := &s.chats[i]
		if r.UserID.String() == userID.String() && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *Store) SumChatTokensSince(_ context.Context, userID id.UserID, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for i := range s.chats {
		r := &s.chats[i]
		if r.UserID.String() == userID.String() && !r.CreatedAt.Before(since) {
			total += r.InputTokens + r.OutputTokens
		}
	}
	return total, nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions

func paginate[T any](items []*T, offset, limit int) []*T {
	start := offset
	if start < 0 {
		start = 0
	}
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func sortByCreated[T any](items []*T, createdAt func(*T) time.Time) {
	// Insertion sort; listings here are small and map iteration order must
	// not leak to callers.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && createdAt(items[j]).Before(createdAt(items[j-1])); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
