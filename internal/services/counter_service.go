package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

var (
	// ErrCounterInvalidInput indicates an unknown counter key or missing tenant.
	ErrCounterInvalidInput = errors.New("counter: invalid input")
	// ErrCounterUnavailable indicates the reservation did not commit. Callers
	// must not create the entity the number was meant for.
	ErrCounterUnavailable = errors.New("counter: unavailable")
)

// CounterServiceDeps bundles collaborators required to construct a counter service instance.
type CounterServiceDeps struct {
	Repository repositories.CounterRepository
	Logger     EventLogger
}

type counterService struct {
	repo   repositories.CounterRepository
	logger EventLogger
}

var _ CounterService = (*counterService)(nil)

// NewCounterService constructs a service that reserves sequence numbers on top of the repository.
func NewCounterService(deps CounterServiceDeps) (CounterService, error) {
	if deps.Repository == nil {
		return nil, errors.New("counter service: repository is required")
	}
	return &counterService{repo: deps.Repository, logger: loggerOrNoop(deps.Logger)}, nil
}

// NextSequence returns the reserved value. Values are unique and increasing
// per (company, key) and never reused, even after the entity is deleted.
func (s *counterService) NextSequence(ctx context.Context, companyID string, key domain.CounterKey) (int64, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return 0, fmt.Errorf("%w: company id is required", ErrCounterInvalidInput)
	}
	if !key.Valid() {
		return 0, fmt.Errorf("%w: unknown key %q", ErrCounterInvalidInput, key)
	}
	value, err := s.repo.Next(ctx, companyID, key)
	if err != nil {
		return 0, s.translate(ctx, companyID, key, err)
	}
	return value, nil
}

func (s *counterService) Peek(ctx context.Context, companyID string, key domain.CounterKey) (int64, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return 0, fmt.Errorf("%w: company id is required", ErrCounterInvalidInput)
	}
	if !key.Valid() {
		return 0, fmt.Errorf("%w: unknown key %q", ErrCounterInvalidInput, key)
	}
	value, err := s.repo.Peek(ctx, companyID, key)
	if err != nil {
		return 0, s.translate(ctx, companyID, key, err)
	}
	return value, nil
}

func (s *counterService) translate(ctx context.Context, companyID string, key domain.CounterKey, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, repositories.ErrCounterInvalid) {
		return fmt.Errorf("%w: %v", ErrCounterInvalidInput, err)
	}
	s.logger(ctx, "counter.reserve_failed", map[string]any{
		"companyId": companyID,
		"key":       string(key),
		"error":     err.Error(),
	})
	return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
}
