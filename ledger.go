package metered

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/types"
)

// Credit adds amount to the user's balance and appends a deposit
// transaction. The amount must be strictly positive.
func (e *Engine) Credit(ctx context.Context, userID id.UserID, amount types.Credits, description string) (*ledger.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: credit of %s", ErrInvalidAmount, amount)
	}

	unlock := e.locks.Lock(userID.String())
	defer unlock()

	txn, err := e.creditLocked(ctx, userID, amount, ledger.KindDeposit, description)
	if err != nil {
		return nil, err
	}
	e.plugins.EmitCredited(ctx, txn)
	e.logger.Debug("credited",
		slog.String("user_id", userID.String()),
		slog.String("amount", amount.String()),
		slog.String("balance", txn.BalanceAfter.String()))
	return txn, nil
}

// Debit deducts amount from the user's balance and appends a transaction
// of the given kind. The amount must be strictly positive, and the balance
// must cover it in full; a short balance fails with ErrInsufficientBalance
// and changes nothing.
func (e *Engine) Debit(ctx context.Context, userID id.UserID, amount types.Credits, kind ledger.Kind, description string) (*ledger.Transaction, error) {
	unlock := e.locks.Lock(userID.String())
	defer unlock()

	txn, err := e.debitLocked(ctx, userID, amount, kind, description)
	if err != nil {
		return nil, err
	}
	e.plugins.EmitDebited(ctx, txn)
	e.logger.Debug("debited",
		slog.String("user_id", userID.String()),
		slog.String("amount", amount.String()),
		slog.String("balance", txn.BalanceAfter.String()))
	return txn, nil
}

// Balance returns the user's current credit balance.
func (e *Engine) Balance(ctx context.Context, userID id.UserID) (types.Credits, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	u, err := e.store.GetUser(sctx, userID)
	if err != nil {
		return 0, storeErr(err)
	}
	return u.Balance, nil
}

// Transactions returns the user's transaction history in insertion order.
func (e *Engine) Transactions(ctx context.Context, userID id.UserID, opts ledger.ListOpts) ([]*ledger.Transaction, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	txns, err := e.store.ListTransactions(sctx, userID, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	return txns, nil
}

// creditLocked applies a balance increase and appends the transaction.
// Caller must hold the user's lock.
func (e *Engine) creditLocked(ctx context.Context, userID id.UserID, amount types.Credits, kind ledger.Kind, description string) (*ledger.Transaction, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	u, err := e.store.GetUser(sctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	u.Balance += amount
	u.Touch()
	if err := e.store.UpdateUser(sctx, u); err != nil {
		return nil, storeErr(err)
	}

	txn := &ledger.Transaction{
		ID:           id.NewTransactionID(),
		UserID:       userID,
		Amount:       amount,
		Kind:         kind,
		Description:  description,
		BalanceAfter: u.Balance,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.AppendTransaction(sctx, txn); err != nil {
		// Balance moved but the trail entry is lost. Roll the balance back
		// so state and history agree.
		u.Balance -= amount
		u.Touch()
		if rbErr := e.store.UpdateUser(sctx, u); rbErr != nil {
			e.logger.Error("credit rollback failed",
				slog.String("user_id", userID.String()),
				slog.Any("error", rbErr))
		}
		return nil, storeErr(err)
	}
	return txn, nil
}

// debitLocked applies a balance decrease and appends the transaction with
// a negative amount. Caller must hold the user's lock.
func (e *Engine) debitLocked(ctx context.Context, userID id.UserID, amount types.Credits, kind ledger.Kind, description string) (*ledger.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: debit of %s", ErrInvalidAmount, amount)
	}
	if !kind.Valid() || kind == ledger.KindDeposit {
		return nil, fmt.Errorf("%w: bad debit kind %q", ErrInvalidInput, kind)
	}

	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	u, err := e.store.GetUser(sctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if u.Balance < amount {
		return nil, fmt.Errorf("%w: balance %s, need %s", ErrInsufficientBalance, u.Balance, amount)
	}
	u.Balance -= amount
	u.Touch()
	if err := e.store.UpdateUser(sctx, u); err != nil {
		return nil, storeErr(err)
	}

	txn := &ledger.Transaction{
		ID:           id.NewTransactionID(),
		UserID:       userID,
		Amount:       -amount,
		Kind:         kind,
		Description:  description,
		BalanceAfter: u.Balance,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.AppendTransaction(sctx, txn); err != nil {
		u.Balance += amount
		u.Touch()
		if rbErr := e.store.UpdateUser(sctx, u); rbErr != nil {
			e.logger.Error("debit rollback failed",
				slog.String("user_id", userID.String()),
				slog.Any("error", rbErr))
		}
		return nil, storeErr(err)
	}
	return txn, nil
}

// refundLocked reverses an earlier debit with a compensating deposit.
// Used when a later step of a multi-write operation fails; the trail keeps
// both entries. Caller must hold the user's lock.
func (e *Engine) refundLocked(ctx context.Context, userID id.UserID, amount types.Credits, description string) {
	if _, err := e.creditLocked(ctx, userID, amount, ledger.KindDeposit, "reversal: "+description); err != nil {
		e.logger.Error("refund failed",
			slog.String("user_id", userID.String()),
			slog.String("amount", amount.String()),
			slog.Any("error", err))
	}
}
