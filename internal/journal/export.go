package journal

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"trade-journal-go/internal/metrics"
	"trade-journal-go/internal/models"
)

// csvRow is one exported trade with its derived figures.
type csvRow struct {
	ID           string  `csv:"id"`
	Date         string  `csv:"date"`
	Stock        string  `csv:"stock"`
	Quantity     float64 `csv:"quantity"`
	Entry        float64 `csv:"entry"`
	StopLoss     float64 `csv:"sl"`
	Target       float64 `csv:"target"`
	Exit         string  `csv:"exit"`
	Outcome      string  `csv:"outcome"`
	Strategy     string  `csv:"strategy"`
	SLAmount     float64 `csv:"sl_amount"`
	RewardAmount float64 `csv:"reward_amount"`
	RiskReward   float64 `csv:"risk_reward"`
	PnL          string  `csv:"pnl"`
	Notes        string  `csv:"notes"`
}

// WriteCSV writes trades as CSV with a header row. Open trades leave exit and pnl empty.
func WriteCSV(w io.Writer, trades []models.Trade) error {
	rows := make([]*csvRow, 0, len(trades))
	for _, t := range trades {
		b := metrics.ForTrade(t)
		row := &csvRow{
			ID:           t.ID,
			Date:         t.Date.Format("2006-01-02"),
			Stock:        t.StockName,
			Quantity:     t.Quantity,
			Entry:        t.EntryPrice,
			StopLoss:     t.SLPrice,
			Target:       t.TargetPrice,
			Outcome:      string(t.Outcome()),
			Strategy:     t.Strategy,
			SLAmount:     b.SLAmount,
			RewardAmount: b.RewardAmount,
			RiskReward:   b.RiskRewardRatio,
			Notes:        t.Notes,
		}
		if t.ExitPrice != nil {
			row.Exit = strconv.FormatFloat(*t.ExitPrice, 'f', -1, 64)
		}
		if b.RealizedPnL != nil {
			row.PnL = strconv.FormatFloat(*b.RealizedPnL, 'f', -1, 64)
		}
		rows = append(rows, row)
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
