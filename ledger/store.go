package ledger

import (
	"context"

	"github.com/xraph/metered/id"
)

// Store is the persistence contract for the transaction trail.
// Implementations must only ever append; there is no update or delete.
type Store interface {
	Append(ctx context.Context, txn *Transaction) error
	List(ctx context.Context, userID id.UserID, opts ListOpts) ([]*Transaction, error)
	Count(ctx context.Context, userID id.UserID) (int64, error)
}

// ListOpts controls pagination for transaction listings. Results are
// returned in insertion order, ascending by creation time.
type ListOpts struct {
	Limit  int
	Offset int
}
