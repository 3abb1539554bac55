package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"

	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

// ErrLabelInvalidIdentifier is returned for blank or placeholder segments.
var ErrLabelInvalidIdentifier = errors.New("label: invalid identifier")

// Resolution strategies reported to ResolveObserver.
const (
	ResolvedByCache     = "cache"
	ResolvedByID        = "id"
	ResolvedByLabelID   = "labelId"
	ResolvedByLabelCode = "labelCode"
	ResolvedMiss        = "miss"
)

// ResolveObserver records which lookup satisfied a resolution.
type ResolveObserver interface {
	ObserveLabelResolve(strategy string)
}

// LabelResolverDeps bundles collaborators for the resolver.
type LabelResolverDeps struct {
	Labels   repositories.LabelRepository
	Cache    LabelCache
	Observer ResolveObserver
	Logger   EventLogger
	// Backoff governs retries of transient store errors. Zero uses gax defaults.
	Backoff     gax.Backoff
	MaxAttempts int
}

type labelResolver struct {
	labels      repositories.LabelRepository
	cache       LabelCache
	observer    ResolveObserver
	logger      EventLogger
	backoff     gax.Backoff
	maxAttempts int
}

var _ LabelResolver = (*labelResolver)(nil)

func NewLabelResolver(deps LabelResolverDeps) (LabelResolver, error) {
	if deps.Labels == nil {
		return nil, errors.New("label resolver: label repository is required")
	}
	backoff := deps.Backoff
	if backoff.Initial <= 0 {
		backoff = gax.Backoff{Initial: 50 * time.Millisecond, Max: time.Second, Multiplier: 2}
	}
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &labelResolver{
		labels:      deps.Labels,
		cache:       deps.Cache,
		observer:    deps.Observer,
		logger:      loggerOrNoop(deps.Logger),
		backoff:     backoff,
		maxAttempts: attempts,
	}, nil
}

// Resolve tries the segment as a document id, then as a labelId, then as a
// labelCode, and returns the first match.
func (r *labelResolver) Resolve(ctx context.Context, segment string) (Label, error) {
	segment = strings.TrimSpace(segment)
	switch segment {
	case "", "undefined", "null":
		return Label{}, fmt.Errorf("%w: %q", ErrLabelInvalidIdentifier, segment)
	}

	if r.cache != nil {
		label, ok, err := r.cache.Get(ctx, segment)
		if err != nil {
			r.logger(ctx, "label.cache_get_failed", map[string]any{"segment": segment, "error": err.Error()})
		} else if ok {
			r.observe(ResolvedByCache)
			return label, nil
		}
	}

	lookups := []struct {
		strategy string
		find     func(context.Context, string) (Label, error)
	}{
		{ResolvedByID, r.labels.Get},
		{ResolvedByLabelID, r.labels.FindByLabelID},
		{ResolvedByLabelCode, r.labels.FindByLabelCode},
	}
	for _, lookup := range lookups {
		label, err := r.read(ctx, segment, lookup.find)
		if err == nil {
			r.observe(lookup.strategy)
			r.remember(ctx, segment, label)
			return label, nil
		}
		if !repositories.IsNotFound(err) {
			return Label{}, translateRepoError(err, ErrLabelNotFound, segment)
		}
	}
	r.observe(ResolvedMiss)
	return Label{}, fmt.Errorf("%w: %s", ErrLabelNotFound, segment)
}

// read retries transient failures. Lookups are idempotent reads.
func (r *labelResolver) read(ctx context.Context, segment string, find func(context.Context, string) (Label, error)) (Label, error) {
	var label Label
	attempt := 0
	retryer := func() gax.Retryer {
		return gax.OnErrorFunc(r.backoff, func(err error) bool {
			attempt++
			return attempt < r.maxAttempts && repositories.IsUnavailable(err)
		})
	}
	err := gax.Invoke(ctx, func(ctx context.Context, _ gax.CallSettings) error {
		var err error
		label, err = find(ctx, segment)
		return err
	}, gax.WithRetry(retryer))
	return label, err
}

func (r *labelResolver) remember(ctx context.Context, segment string, label Label) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, segment, label); err != nil {
		r.logger(ctx, "label.cache_set_failed", map[string]any{"segment": segment, "error": err.Error()})
	}
}

func (r *labelResolver) observe(strategy string) {
	if r.observer != nil {
		r.observer.ObserveLabelResolve(strategy)
	}
}
