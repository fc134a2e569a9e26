package journal

import (
	"fmt"
	"math"
	"strings"

	"trade-journal-go/internal/models"
)

// Validate checks a trade before it reaches the store.
func Validate(in models.TradeInput) error {
	return validate(in, true)
}

// validate skips the outcome flag rule when checkFlags is false, so legacy
// records with both flags set can still be edited.
func validate(in models.TradeInput, checkFlags bool) error {
	var problems []string

	if in.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if strings.TrimSpace(in.StockName) == "" {
		problems = append(problems, "stockName is required")
	}
	if strings.TrimSpace(in.Strategy) == "" {
		problems = append(problems, "strategy is required")
	}
	if !positive(in.Quantity) {
		problems = append(problems, "quantity must be positive")
	}
	if !positive(in.EntryPrice) {
		problems = append(problems, "entryPrice must be positive")
	}
	if !positive(in.SLPrice) {
		problems = append(problems, "slPrice must be positive")
	}
	if !positive(in.TargetPrice) {
		problems = append(problems, "targetPrice must be positive")
	}
	if in.ExitPrice != nil && !positive(*in.ExitPrice) {
		problems = append(problems, "exitPrice must be positive when set")
	}
	if checkFlags && in.TrailedSL && in.SLHit {
		problems = append(problems, "trailedSL and slHit are mutually exclusive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTrade, strings.Join(problems, "; "))
	}
	return nil
}

// positive reports whether v is a finite number above zero.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
