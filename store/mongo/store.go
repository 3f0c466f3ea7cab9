// Package mongo implements the metered store on MongoDB using the official
// driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	metered "github.com/xraph/metered"
	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	meteredstore "github.com/xraph/metered/store"
	"github.com/xraph/metered/subscription"
	"github.com/xraph/metered/user"
)

// Collection name constants.
const (
	colUsers         = "metered_users"
	colTransactions  = "metered_transactions"
	colPlans         = "metered_plans"
	colSubscriptions = "metered_subscriptions"
	colChats         = "metered_chats"
)

// compile-time interface check
var _ meteredstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	db *mongo.Database
}

// New creates a new MongoDB store on the given database.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Database returns the underlying mongo database for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates indexes for all metered collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colPlans: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colSubscriptions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_at", Value: 1}}},
		},
		colChats: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("metered/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *Store) Close() error {
	return s.db.Client().Disconnect(context.Background())
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

	_, err := s.db.Collection(colUsers).InsertOne(ctx, toUserModel(u))
	if err != nil {
		return fmt.Errorf("metered/mongo: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	var m userModel
	err := s.db.Collection(colUsers).
		FindOne(ctx, bson.M{"_id": userID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, metered.ErrUserNotFound
		}
		return nil, fmt.Errorf("metered/mongo: get user: %w", err)
	}
	return fromUserModel(&m)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	var m userModel
	err := s.db.Collection(colUsers).
		FindOne(ctx, bson.M{"username": username}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, metered.ErrUserNotFound
		}
		return nil, fmt.Errorf("metered/mongo: get user by username: %w", err)
	}
	return fromUserModel(&m)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	var m userModel
	err := s.db.Collection(colUsers).
		FindOne(ctx, bson.M{"email": email}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, metered.ErrUserNotFound
		}
		return nil, fmt.Errorf("metered/mongo: get user by email: %w", err)
	}
	return fromUserModel(&m)
}

func (s *Store) ListUsers(ctx context.Context, opts user.ListOpts) ([]*user.User, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colUsers).Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("metered/mongo: list users: %w", err)
	}
	var models []userModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("metered/mongo: list users: %w", err)
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
	res, err := s.db.Collection(colUsers).
		ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("metered/mongo: update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return metered.ErrUserNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID id.UserID) error {
	res, err := s.db.Collection(colUsers).
		DeleteOne(ctx, bson.M{"_id": userID.String()})
	if err != nil {
		return fmt.Errorf("metered/mongo: delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return metered.ErrUserNotFound
	}
	return nil
}

// ==================== Ledger Store ====================

func (s *Store) AppendTransaction(ctx context.Context, txn *ledger.Transaction) error {
	_, err := s.db.Collection(colTransactions).InsertOne(ctx, toTransactionModel(txn))
	if err != nil {
		return fmt.Errorf("metered/mongo: append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID id.UserID, opts ledger.ListOpts) ([]*ledger.Transaction, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colTransactions).
		Find(ctx, bson.M{"user_id": userID.String()}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("metered/mongo: list transactions: %w", err)
	}
	var models []transactionModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("metered/mongo: list transactions: %w", err)
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
	total, err := s.db.Collection(colTransactions).
		CountDocuments(ctx, bson.M{"user_id": userID.String()})
	if err != nil {
		return 0, fmt.Errorf("metered/mongo: count transactions: %w", err)
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

	_, err := s.db.Collection(colPlans).InsertOne(ctx, toPlanModel(p))
	if err != nil {
		return fmt.Errorf("metered/mongo: create plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	var m planModel
	err := s.db.Collection(colPlans).
		FindOne(ctx, bson.M{"_id": planID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, metered.ErrPlanNotFound
		}
		return nil, fmt.Errorf("metered/mongo: get plan: %w", err)
	}
	return fromPlanModel(&m)
}

func (s *Store) GetPlanByName(ctx context.Context, name string) (*plan.Plan, error) {
	var m planModel
	err := s.db.Collection(colPlans).
		FindOne(ctx, bson.M{"name": name}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, metered.ErrPlanNotFound
		}
		return nil, fmt.Errorf("metered/mongo: get plan by name: %w", err)
	}
	return fromPlanModel(&m)
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colPlans).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("metered/mongo: list plans: %w", err)
	}
	var models []planModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("metered/mongo: list plans: %w", err)
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
	res, err := s.db.Collection(colPlans).
		ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("metered/mongo: update plan: %w", err)
	}
	if res.MatchedCount == 0 {
		return metered.ErrPlanNotFound
	}
	return nil
}

func (s *Store) ArchivePlan(ctx context.Context, planID id.PlanID) error {
	res, err := s.db.Collection(colPlans).
		UpdateOne(ctx,
			bson.M{"_id": planID.String()},
			bson.M{"$set": bson.M{
				"status":     string(plan.StatusArchived),
				"updated_at": now(),
			}})
	if err != nil {
		return fmt.Errorf("metered/mongo: archive plan: %w", err)
	}
	if res.MatchedCount == 0 {
		return metered.ErrPlanNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.db.Collection(colSubscriptions).InsertOne(ctx, toSubscriptionModel(sub))
	if err != nil {
		return fmt.Errorf("metered/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.db.Collection(colSubscriptions).
		FindOne(ctx, bson.M{"_id": subID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, metered.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("metered/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetActiveSubscription(ctx context.Context, userID id.UserID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.db.Collection(colSubscriptions).
		FindOne(ctx,
			bson.M{
				"user_id": userID.String(),
				"status":  string(subscription.StatusActive),
			},
			options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, metered.ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("metered/mongo: get active subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) ListSubscriptions(ctx context.Context, userID id.UserID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	filter := bson.M{"user_id": userID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colSubscriptions).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("metered/mongo: list subscriptions: %w", err)
	}
	var models []subscriptionModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("metered/mongo: list subscriptions: %w", err)
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
	res, err := s.db.Collection(colSubscriptions).
		ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("metered/mongo: update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return metered.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListOverdueSubscriptions(ctx context.Context, asOf time.Time, limit int) ([]*subscription.Subscription, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "end_at", Value: 1}})
	if limit > 0 {
		findOpts = findOpts.SetLimit(int64(limit))
	}

	cur, err := s.db.Collection(colSubscriptions).
		Find(ctx,
			bson.M{
				"status": string(subscription.StatusActive),
				"end_at": bson.M{"$lt": asOf},
			}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("metered/mongo: list overdue subscriptions: %w", err)
	}
	var models []subscriptionModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("metered/mongo: list overdue subscriptions: %w", err)
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
	_, err := s.db.Collection(colChats).InsertOne(ctx, toChatModel(r))
	if err != nil {
		return fmt.Errorf("metered/mongo: create chat: %w", err)
	}
	return nil
}

func (s *Store) GetChat(ctx context.Context, chatID id.ChatID) (*chat.Record, error) {
	var m chatModel
	err := s.db.Collection(colChats).
		FindOne(ctx, bson.M{"_id": chatID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, metered.ErrChatNotFound
		}
		return nil, fmt.Errorf("metered/mongo: get chat: %w", err)
	}
	return fromChatModel(&m)
}

func (s *Store) ListChats(ctx context.Context, userID id.UserID, opts chat.ListOpts) ([]*chat.Record, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colChats).
		Find(ctx, bson.M{"user_id": userID.String()}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("metered/mongo: list chats: %w", err)
	}
	var models []chatModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("metered/mongo: list chats: %w", err)
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
	total, err := s.db.Collection(colChats).
		CountDocuments(ctx, bson.M{
			"user_id":    userID.String(),
			"created_at": bson.M{"$gte": since},
		})
	if err != nil {
		return 0, fmt.Errorf("metered/mongo: count chats: %w", err)
	}
	return total, nil
}

func (s *Store) SumChatTokensSince(ctx context.Context, userID id.UserID, since time.Time) (int64, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"user_id":    userID.String(),
			"created_at": bson.M{"$gte": since},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id": nil,
			"total": bson.M{"$sum": bson.M{
				"$add": bson.A{"$input_tokens", "$output_tokens"},
			}},
		}}},
	}

	cur, err := s.db.Collection(colChats).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("metered/mongo: sum chat tokens: %w", err)
	}
	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("metered/mongo: sum chat tokens: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks for the driver's no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
