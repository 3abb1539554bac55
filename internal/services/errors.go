package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

var (
	// ErrPermissionDenied is returned when the acting user may not perform the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStoreUnavailable wraps transient backend failures that callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// translateRepoError maps repository classifications onto a service's sentinels.
// notFound may be nil when the caller has no not-found sentinel.
func translateRepoError(err error, notFound error, what string) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound() && notFound != nil:
			return fmt.Errorf("%w: %s", notFound, what)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return err
}

// EventLogger receives structured service events. main adapts it to zap.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

func loggerOrNoop(l EventLogger) EventLogger {
	if l == nil {
		return func(context.Context, string, map[string]any) {}
	}
	return l
}

func clockOrNow(clock func() time.Time) func() time.Time {
	if clock == nil {
		clock = time.Now
	}
	return func() time.Time { return clock().UTC() }
}
