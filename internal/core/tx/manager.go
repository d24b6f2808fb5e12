// Package tx provides transaction management abstractions.
// Domain services depend on Manager; the postgres driver supplies a real
// transaction manager and the memory driver supplies Direct.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK, and nested transaction support.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Direct runs fn without a transaction. The memory driver relies on the
// ledger's key locks for atomicity, and its writes cannot fail halfway.
type Direct struct{}

// RunInTransaction implements Manager.
func (Direct) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ Manager = Direct{}
