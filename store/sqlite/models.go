package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/subscription"
	"github.com/xraph/metered/types"
	"github.com/xraph/metered/user"
)

// ==================== User models ====================

type userModel struct {
	grove.BaseModel `grove:"table:metered_users"`

	ID        string    `grove:"id,pk"`
	Username  string    `grove:"username"`
	Email     string    `grove:"email"`
	Role      string    `grove:"role"`
	Balance   int64     `grove:"balance"`
	Active    bool      `grove:"active"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toUserModel(u *user.User) *userModel {
	return &userModel{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		Balance:   u.Balance.Units(),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) (*user.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, err
	}

	return &user.User{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       userID,
		Username: m.Username,
		Email:    m.Email,
		Role:     user.Role(m.Role),
		Balance:  types.FromUnits(m.Balance),
		Active:   m.Active,
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:metered_transactions"`

	ID           string    `grove:"id,pk"`
	UserID       string    `grove:"user_id"`
	Amount       int64     `grove:"amount"`
	Kind         string    `grove:"kind"`
	Description  string    `grove:"description"`
	BalanceAfter int64     `grove:"balance_after"`
	CreatedAt    time.Time `grove:"created_at"`
}

func toTransactionModel(t *ledger.Transaction) *transactionModel {
	return &transactionModel{
		ID:           t.ID.String(),
		UserID:       t.UserID.String(),
		Amount:       t.Amount.Units(),
		Kind:         string(t.Kind),
		Description:  t.Description,
		BalanceAfter: t.BalanceAfter.Units(),
		CreatedAt:    t.CreatedAt,
	}
}

func fromTransactionModel(m *transactionModel) (*ledger.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}

	return &ledger.Transaction{
		ID:           txnID,
		UserID:       userID,
		Amount:       types.FromUnits(m.Amount),
		Kind:         ledger.Kind(m.Kind),
		Description:  m.Description,
		BalanceAfter: types.FromUnits(m.BalanceAfter),
		CreatedAt:    m.CreatedAt,
	}, nil
}

// ==================== Plan models ====================

type planModel struct {
	grove.BaseModel `grove:"table:metered_plans"`

	ID                string    `grove:"id,pk"`
	Name              string    `grove:"name"`
	Description       string    `grove:"description"`
	Price             int64     `grove:"price"`
	DurationDays      int       `grove:"duration_days"`
	MaxChatsPerHour   int64     `grove:"max_chats_per_hour"`
	MaxTokensPerMonth int64     `grove:"max_tokens_per_month"`
	VIPModels         bool      `grove:"vip_models"`
	Status            string    `grove:"status"`
	CreatedAt         time.Time `grove:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"`
}

func toPlanModel(p *plan.Plan) *planModel {
	return &planModel{
		ID:                p.ID.String(),
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price.Units(),
		DurationDays:      p.DurationDays,
		MaxChatsPerHour:   p.MaxChatsPerHour,
		MaxTokensPerMonth: p.MaxTokensPerMonth,
		VIPModels:         p.VIPModels,
		Status:            string(p.Status),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func fromPlanModel(m *planModel) (*plan.Plan, error) {
	planID, err := id.ParsePlanID(m.ID)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                planID,
		Name:              m.Name,
		Description:       m.Description,
		Price:             types.FromUnits(m.Price),
		DurationDays:      m.DurationDays,
		MaxChatsPerHour:   m.MaxChatsPerHour,
		MaxTokensPerMonth: m.MaxTokensPerMonth,
		VIPModels:         m.VIPModels,
		Status:            plan.Status(m.Status),
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:metered_subscriptions"`

	ID        string    `grove:"id,pk"`
	UserID    string    `grove:"user_id"`
	PlanID    string    `grove:"plan_id"`
	Status    string    `grove:"status"`
	StartAt   time.Time `grove:"start_at"`
	EndAt     time.Time `grove:"end_at"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:        s.ID.String(),
		UserID:    s.UserID.String(),
		PlanID:    s.PlanID.String(),
		Status:    string(s.Status),
		StartAt:   s.StartAt,
		EndAt:     s.EndAt,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	planID, err := id.ParsePlanID(m.PlanID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:      subID,
		UserID:  userID,
		PlanID:  planID,
		Status:  subscription.Status(m.Status),
		StartAt: m.StartAt,
		EndAt:   m.EndAt,
	}, nil
}

// ==================== Chat models ====================

type chatModel struct {
	grove.BaseModel `grove:"table:metered_chats"`

	ID           string    `grove:"id,pk"`
	UserID       string    `grove:"user_id"`
	Model        string    `grove:"model"`
	InputTokens  int64     `grove:"input_tokens"`
	OutputTokens int64     `grove:"output_tokens"`
	Cost         int64     `grove:"cost"`
	CreatedAt    time.Time `grove:"created_at"`
}

func toChatModel(r *chat.Record) *chatModel {
	return &chatModel{
		ID:           r.ID.String(),
		UserID:       r.UserID.String(),
		Model:        r.Model,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		Cost:         r.Cost.Units(),
		CreatedAt:    r.CreatedAt,
	}
}

func fromChatModel(m *chatModel) (*chat.Record, error) {
	chatID, err := id.ParseChatID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}

	return &chat.Record{
		ID:           chatID,
		UserID:       userID,
		Model:        m.Model,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		Cost:         types.FromUnits(m.Cost),
		CreatedAt:    m.CreatedAt,
	}, nil
}
