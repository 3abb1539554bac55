package repositories

import (
	"errors"
	"fmt"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
)

var (
	// ErrCounterInvalid marks a blank tenant or an unknown counter key.
	ErrCounterInvalid = errors.New("invalid counter")
	// ErrCounterContention marks a reservation that gave up after the
	// transaction retry budget was spent.
	ErrCounterContention = errors.New("counter transaction retries exhausted")
)

// CounterError locates a failed reservation within a tenant's counters.
type CounterError struct {
	CompanyID string
	Key       domain.CounterKey
	Err       error
}

// NewCounterError ties err to companyID/key.
func NewCounterError(companyID string, key domain.CounterKey, err error) *CounterError {
	return &CounterError{CompanyID: companyID, Key: key, Err: err}
}

func (e *CounterError) Error() string {
	return fmt.Sprintf("counter %s/%s: %v", e.CompanyID, e.Key, e.Err)
}

func (e *CounterError) Unwrap() error { return e.Err }

func (e *CounterError) IsNotFound() bool    { return false }
func (e *CounterError) IsConflict() bool    { return false }
func (e *CounterError) IsUnavailable() bool { return errors.Is(e.Err, ErrCounterContention) }

// ValidateCounter rejects reservations no driver can serve.
func ValidateCounter(companyID string, key domain.CounterKey) error {
	switch {
	case companyID == "":
		return NewCounterError(companyID, key, fmt.Errorf("%w: company id is required", ErrCounterInvalid))
	case !key.Valid():
		return NewCounterError(companyID, key, fmt.Errorf("%w: unknown key %q", ErrCounterInvalid, key))
	}
	return nil
}
