// Package ledger defines the immutable transaction trail behind every
// balance mutation.
package ledger

import (
	"time"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/types"
)

// Kind classifies a balance mutation.
type Kind string

const (
	KindDeposit      Kind = "deposit"
	KindWithdrawal   Kind = "withdrawal"
	KindChatCost     Kind = "chat_cost"
	KindSubscription Kind = "subscription"
)

// Valid reports whether k is a known transaction kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindChatCost, KindSubscription:
		return true
	}
	return false
}

// Transaction is an append-only record of one balance mutation. Amount is
// signed: positive for credits, negative for debits. BalanceAfter is the
// user's balance immediately after the mutation, so replaying a user's
// transactions in creation order reproduces the current balance exactly.
//
// Transactions are never updated or deleted.
type Transaction struct {
	ID           id.TransactionID `json:"id"`
	UserID       id.UserID        `json:"user_id"`
	Amount       types.Credits    `json:"amount"`
	Kind         Kind             `json:"kind"`
	Description  string           `json:"description"`
	BalanceAfter types.Credits    `json:"balance_after"`
	CreatedAt    time.Time        `json:"created_at"`
}
