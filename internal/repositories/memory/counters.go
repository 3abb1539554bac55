package memory

import (
	"context"
	"strings"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
)

type counterRepo struct{ r *Registry }

func (c counterRepo) Next(ctx context.Context, companyID string, key domain.CounterKey) (int64, error) {
	if err := validCounter(companyID, key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	values := c.r.counters[companyID]
	if values == nil {
		values = make(map[domain.CounterKey]int64)
		c.r.counters[companyID] = values
	}
	current := values[key]
	if current < 1 {
		current = 1
	}
	values[key] = current + 1
	return current, nil
}

func (c counterRepo) Peek(_ context.Context, companyID string, key domain.CounterKey) (int64, error) {
	if err := validCounter(companyID, key); err != nil {
		return 0, err
	}
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	if v := c.r.counters[companyID][key]; v >= 1 {
		return v, nil
	}
	return 1, nil
}

func validCounter(companyID string, key domain.CounterKey) error {
	return repositories.ValidateCounter(strings.TrimSpace(companyID), key)
}
