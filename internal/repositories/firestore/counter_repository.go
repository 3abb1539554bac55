package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	pfirestore "github.com/Heang0/Digital-Label-sub001/internal/platform/firestore"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

const countersCollection = "counters"

// CounterRepository keeps one document per company under counters/{companyId}
// with one numeric field per sequence. Atomicity comes from Firestore
// transactions; the client re-runs the transaction body on contention up to
// pfirestore.DefaultTxAttempts times, so no manual retry happens here.
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.Collection[map[string]any]
	now      func() time.Time
}

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider: provider,
		counters: pfirestore.NewCollection[map[string]any](provider, countersCollection),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Next reserves the current value of key and stores the successor.
func (r *CounterRepository) Next(ctx context.Context, companyID string, key domain.CounterKey) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}
	id, err := validateCounter(companyID, key)
	if err != nil {
		return 0, err
	}

	var reserved int64
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.counters.Ref(ctx, id)
		if err != nil {
			return err
		}
		current := int64(1)
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.OK:
			current = counterValue(snap.Data(), key)
		case codes.NotFound:
		default:
			return err
		}
		reserved = current
		return tx.Set(ref, map[string]any{
			string(key): current + 1,
			"updatedAt": r.now(),
		}, firestore.MergeAll)
	})
	if err != nil {
		wrapped := pfirestore.WrapError("counters.next", err)
		if isContention(wrapped) {
			return 0, repositories.NewCounterError(id, key, fmt.Errorf("%w: %w", repositories.ErrCounterContention, wrapped))
		}
		return 0, wrapped
	}
	return reserved, nil
}

// Peek returns the value Next would hand out without writing.
func (r *CounterRepository) Peek(ctx context.Context, companyID string, key domain.CounterKey) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}
	id, err := validateCounter(companyID, key)
	if err != nil {
		return 0, err
	}
	doc, err := r.counters.Get(ctx, id)
	if err != nil {
		var fsErr *pfirestore.Error
		if errors.As(err, &fsErr) && fsErr.IsNotFound() {
			return 1, nil
		}
		return 0, err
	}
	return counterValue(doc.Data, key), nil
}

func validateCounter(companyID string, key domain.CounterKey) (string, error) {
	id := strings.TrimSpace(companyID)
	return id, repositories.ValidateCounter(id, key)
}

// counterValue reads a numeric field that may have been written by other
// clients as an int or a float. Missing or non-positive values restart at 1.
func counterValue(data map[string]any, key domain.CounterKey) int64 {
	var v int64
	switch raw := data[string(key)].(type) {
	case int64:
		v = raw
	case int:
		v = int64(raw)
	case float64:
		v = int64(raw)
	}
	if v < 1 {
		return 1
	}
	return v
}

func isContention(err error) bool {
	var fsErr *pfirestore.Error
	return errors.As(err, &fsErr) && (fsErr.IsConflict() || fsErr.Code() == codes.Aborted)
}
