package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// RoundPrice rounds a dollar amount to cents, half away from zero.
func RoundPrice(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(2).Float64()
	return rounded
}

// DiscountedPrice applies a percentage discount to base and rounds to cents.
func DiscountedPrice(base, percent float64) float64 {
	b := decimal.NewFromFloat(base)
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(percent).Div(decimal.NewFromInt(100)))
	price, _ := b.Mul(factor).Round(2).Float64()
	return price
}

// ValidPrice reports whether v is a finite, strictly positive amount.
func ValidPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// ValidPercent reports whether p lies within [0, 100].
func ValidPercent(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 100
}

// DiscountActive reports whether the stored discount applies at now.
// Expiry is evaluated on read; stored fields are never cleared by time passing.
func (l Label) DiscountActive(now time.Time) bool {
	if l.DiscountPercent == nil {
		return false
	}
	if l.DiscountEndAt == nil {
		return true
	}
	return now.Before(*l.DiscountEndAt)
}

// EffectivePrice is the price a customer-facing reader should display at now.
func (l Label) EffectivePrice(now time.Time) float64 {
	if l.DiscountActive(now) {
		if l.DiscountPrice != nil {
			return *l.DiscountPrice
		}
		return DiscountedPrice(l.basePrice(), *l.DiscountPercent)
	}
	return l.basePrice()
}

// RegularPrice is the undiscounted price of the label.
func (l Label) RegularPrice() float64 {
	return l.basePrice()
}

func (l Label) basePrice() float64 {
	if l.BasePrice > 0 {
		return l.BasePrice
	}
	return l.CurrentPrice
}
