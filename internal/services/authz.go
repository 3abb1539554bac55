package services

import (
	"fmt"

	"github.com/Heang0/Digital-Label-sub001/internal/policy"
)

func authorize(actor *User, action policy.Action, res policy.Resource) error {
	if !policy.CanPerform(actor, action, res) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, action)
	}
	return nil
}

func authorizePriceChange(actor *User, oldPrice, newPrice float64) error {
	if actor == nil {
		return fmt.Errorf("%w: price change", ErrPermissionDenied)
	}
	if oldPrice <= 0 || oldPrice == newPrice {
		return nil
	}
	if !policy.WithinPriceChangeLimit(actor, oldPrice, newPrice) {
		return fmt.Errorf("%w: price change from %.2f to %.2f exceeds limit of %.0f%%",
			ErrPermissionDenied, oldPrice, newPrice, actor.Permissions.MaxPriceChange)
	}
	return nil
}

// tenantOf returns the company an actor operates on.
func tenantOf(actor *User) string {
	if actor == nil {
		return ""
	}
	return actor.CompanyID
}
