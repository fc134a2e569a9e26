// Package metrics computes the risk and return figures of a trade.
//
// The functions are pure. Amounts are computed with decimal arithmetic and
// converted back to float64 at the edge, so 10 × (150.50 − 148.00) is exactly 25.
package metrics

import (
	"github.com/shopspring/decimal"

	"trade-journal-go/internal/models"
)

// SLAmount is the money at risk between entry and stop-loss: quantity × |entry − sl|.
func SLAmount(quantity, entryPrice, slPrice float64) float64 {
	return slAmount(quantity, entryPrice, slPrice).InexactFloat64()
}

// RewardAmount is the money to gain between entry and target: quantity × |target − entry|.
func RewardAmount(quantity, entryPrice, targetPrice float64) float64 {
	return rewardAmount(quantity, entryPrice, targetPrice).InexactFloat64()
}

// RiskRewardRatio returns rewardAmount / slAmount.
// It returns 0 when slAmount is 0; callers must read 0 as "undefined", not as a 0:N ratio.
func RiskRewardRatio(slAmount, rewardAmount float64) float64 {
	risk := decimal.NewFromFloat(slAmount)
	if risk.IsZero() {
		return 0
	}
	return decimal.NewFromFloat(rewardAmount).Div(risk).InexactFloat64()
}

// RealizedPnL is quantity × (exit − entry). Negative values are losses.
// Long-position convention: a positive quantity profits when exit > entry.
func RealizedPnL(quantity, entryPrice, exitPrice float64) float64 {
	return realizedPnL(quantity, entryPrice, exitPrice).InexactFloat64()
}

// SumPnL adds the realized P&L of every closed trade. Open trades contribute nothing.
func SumPnL(trades []models.Trade) float64 {
	total := decimal.Zero
	for _, t := range trades {
		if t.ExitPrice == nil {
			continue
		}
		total = total.Add(realizedPnL(t.Quantity, t.EntryPrice, *t.ExitPrice))
	}
	return total.InexactFloat64()
}

// Breakdown holds every derived figure of one trade.
type Breakdown struct {
	SLAmount        float64  `json:"slAmount"`
	RewardAmount    float64  `json:"rewardAmount"`
	RiskRewardRatio float64  `json:"riskRewardRatio"`
	RealizedPnL     *float64 `json:"realizedPnl,omitempty"` // nil for open trades
}

// ForTrade computes the Breakdown of t.
func ForTrade(t models.Trade) Breakdown {
	risk := SLAmount(t.Quantity, t.EntryPrice, t.SLPrice)
	reward := RewardAmount(t.Quantity, t.EntryPrice, t.TargetPrice)
	b := Breakdown{
		SLAmount:        risk,
		RewardAmount:    reward,
		RiskRewardRatio: RiskRewardRatio(risk, reward),
	}
	if t.ExitPrice != nil {
		pnl := RealizedPnL(t.Quantity, t.EntryPrice, *t.ExitPrice)
		b.RealizedPnL = &pnl
	}
	return b
}

func slAmount(quantity, entryPrice, slPrice float64) decimal.Decimal {
	q := decimal.NewFromFloat(quantity)
	return q.Mul(decimal.NewFromFloat(entryPrice).Sub(decimal.NewFromFloat(slPrice)).Abs())
}

func rewardAmount(quantity, entryPrice, targetPrice float64) decimal.Decimal {
	q := decimal.NewFromFloat(quantity)
	return q.Mul(decimal.NewFromFloat(targetPrice).Sub(decimal.NewFromFloat(entryPrice)).Abs())
}

func realizedPnL(quantity, entryPrice, exitPrice float64) decimal.Decimal {
	q := decimal.NewFromFloat(quantity)
	return q.Mul(decimal.NewFromFloat(exitPrice).Sub(decimal.NewFromFloat(entryPrice)))
}
