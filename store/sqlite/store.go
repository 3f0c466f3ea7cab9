// Package sqlite implements the metered store on SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	metered "github.com/xraph/metered"
	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	meteredstore "github.com/xraph/metered/store"
	"github.com/xraph/metered/subscription"
	"github.com/xraph/metered/user"
)

// compile-time interface check
var _ meteredstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("metered/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("metered/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	// Unique indexes on username and email backstop these checks; the
	// pre-reads exist to return the precise sentinel.
	if _, err := s.GetUserByUsername(ctx, u.Username); err == nil {
		return metered.ErrDuplicateUsername
	} else if !errors.Is(err, metered.ErrUserNotFound) {
		return err
	}
	if _, err := s.GetUserByEmail(ctx, u.Email); err == nil {
		return metered.ErrDuplicateEmail
	} else if !errors.Is(err, metered.ErrUserNotFound) {
		return err
	}

	m := toUserModel(u)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	m := new(userModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", userID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, metered.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(m)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	m := new(userModel)
	err := s.sdb.NewSelect(m).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, metered.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(m)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	m := new(userModel)
	err := s.sdb.NewSelect(m).
		Where("email = ?", email).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, metered.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(m)
}

func (s *Store) ListUsers(ctx context.Context, opts user.ListOpts) ([]*user.User, error) {
	var models []userModel
	q := s.sdb.NewSelect(&models)

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*user.User, len(models))
	for i := range models {
		u, err := fromUserModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = u
	}
	return result, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	m := toUserModel(u)
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return metered.ErrUserNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID id.UserID) error {
	res, err := s.sdb.NewDelete((*userModel)(nil)).
		Where("id = ?", userID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return metered.ErrUserNotFound
	}
	return nil
}

// ==================== Ledger Store ====================

func (s *Store) AppendTransaction(ctx context.Context, txn *ledger.Transaction) error {
	m := toTransactionModel(txn)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListTransactions(ctx context.Context, userID id.UserID, opts ledger.ListOpts) ([]*ledger.Transaction, error) {
	var models []transactionModel
	q := s.sdb.NewSelect(&models).Where("user_id = ?", userID.String())

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*ledger.Transaction, len(models))
	for i := range models {
		txn, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = txn
	}
	return result, nil
}

func (s *Store) CountTransactions(ctx context.Context, userID id.UserID) (int64, error) {
	var total int64
	err := s.sdb.NewRaw(`
		SELECT COUNT(*) FROM metered_transactions WHERE user_id = ?
	`, userID.String()).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Plan Store ====================

func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	if _, err := s.GetPlanByName(ctx, p.Name); err == nil {
		return metered.ErrDuplicatePlan
	} else if !errors.Is(err, metered.ErrPlanNotFound) {
		return err
	}

	m := toPlanModel(p)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	m := new(planModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", planID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, metered.ErrPlanNotFound
		}
		return nil, err
	}
	return fromPlanModel(m)
}

func (s *Store) GetPlanByName(ctx context.Context, name string) (*plan.Plan, error) {
	m := new(planModel)
	err := s.sdb.NewSelect(m).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, metered.ErrPlanNotFound
		}
		return nil, err
	}
	return fromPlanModel(m)
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*plan.Plan, len(models))
	for i := range models {
		p, err := fromPlanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	m := toPlanModel(p)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return metered.ErrPlanNotFound
	}
	return nil
}

func (s *Store) ArchivePlan(ctx context.Context, planID id.PlanID) error {
	t := now()
	res, err := s.sdb.NewUpdate((*planModel)(nil)).
		Set("status = ?", string(plan.StatusArchived)).
		Set("updated_at = ?", t).
		Where("id = ?", planID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return metered.ErrPlanNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", subID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, metered.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) GetActiveSubscription(ctx context.Context, userID id.UserID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("user_id = ?", userID.String()).
		Where("status = ?", string(subscription.StatusActive)).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, metered.ErrNoActiveSubscription
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) ListSubscriptions(ctx context.Context, userID id.UserID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.sdb.NewSelect(&models).Where("user_id = ?", userID.String())

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return metered.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListOverdueSubscriptions(ctx context.Context, asOf time.Time, limit int) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.sdb.NewSelect(&models).
		Where("status = ?", string(subscription.StatusActive)).
		Where("end_at < ?", asOf).
		OrderExpr("end_at ASC")

	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

// ==================== Chat Store ====================

func (s *Store) CreateChat(ctx context.Context, r *chat.Record) error {
	m := toChatModel(r)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetChat(ctx context.Context, chatID id.ChatID) (*chat.Record, error) {
	m := new(chatModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", chatID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, metered.ErrChatNotFound
		}
		return nil, err
	}
	return fromChatModel(m)
}

func (s *Store) ListChats(ctx context.Context, userID id.UserID, opts chat.ListOpts) ([]*chat.Record, error) {
	var models []chatModel
	q := s.sdb.NewSelect(&models).Where("user_id = ?", userID.String())

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*chat.Record, len(models))
	for i := range models {
		r, err := fromChatModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) CountChatsSince(ctx context.Context, userID id.UserID, since time.Time) (int64, error) {
	var total int64
	err := s.sdb.NewRaw(`
		SELECT COUNT(*) FROM metered_chats WHERE user_id = ? AND created_at >= ?
	`, userID.String(), since).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) SumChatTokensSince(ctx context.Context, userID id.UserID, since time.Time) (int64, error) {
	var total int64
	err := s.sdb.NewRaw(`
		SELECT COALESCE(SUM(input_tokens + output_tokens), 0) FROM metered_chats
		WHERE user_id = ? AND created_at >= ?
	`, userID.String(), since).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
