// Package fine computes late-return penalties.
package fine

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDailyRate is one currency unit per whole day late.
var DefaultDailyRate = decimal.NewFromInt(1)

const day = 24 * time.Hour

// OverdueDays counts whole days between dueAt and returnedAt, truncating partial days.
// It is 0 when returnedAt is not after dueAt.
func OverdueDays(dueAt, returnedAt time.Time) int64 {
	if !returnedAt.After(dueAt) {
		return 0
	}
	return int64(returnedAt.Sub(dueAt) / day)
}

// Compute returns OverdueDays × dailyRate. A negative rate is treated as zero so the
// result is never negative.
func Compute(dueAt, returnedAt time.Time, dailyRate decimal.Decimal) decimal.Decimal {
	if dailyRate.IsNegative() {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(OverdueDays(dueAt, returnedAt)))
}
