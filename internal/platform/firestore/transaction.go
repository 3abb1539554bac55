package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	// DefaultTxAttempts is how many times a contended transaction body is run.
	DefaultTxAttempts = 5
	defaultTxBudget   = 15 * time.Second
)

// TxFunc runs inside a serialisable transaction. It must not have side effects
// outside tx because Firestore re-runs it on contention.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption adjusts a single transaction.
type TxOption func(*txSettings)

type txSettings struct {
	attempts int
	budget   time.Duration
}

// WithTxAttempts overrides DefaultTxAttempts.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the wall time of all attempts together.
func WithTxTimeout(budget time.Duration) TxOption {
	return func(s *txSettings) {
		if budget > 0 {
			s.budget = budget
		}
	}
}

// RunTransaction runs fn on client. A caller deadline shorter than the budget wins.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	switch {
	case client == nil:
		return WrapError("transaction", errors.New("firestore: client is nil"))
	case fn == nil:
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}
	settings := txSettings{attempts: DefaultTxAttempts, budget: defaultTxBudget}
	for _, opt := range opts {
		opt(&settings)
	}
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > settings.budget {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.budget)
		defer cancel()
	}
	return WrapError("transaction", client.RunTransaction(ctx, fn, firestore.MaxAttempts(settings.attempts)))
}
