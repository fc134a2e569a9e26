package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"trade-journal-go/internal/metrics"
	"trade-journal-go/internal/models"
)

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func renderTrades(w io.Writer, trades []models.Trade) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Date", "Stock", "Qty", "Entry", "SL", "Target", "Exit", "Outcome", "R:R", "P&L", "Strategy"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, t := range trades {
		b := metrics.ForTrade(t)
		exit, pnl := "-", "-"
		if t.ExitPrice != nil {
			exit = money(*t.ExitPrice)
		}
		if b.RealizedPnL != nil {
			pnl = money(*b.RealizedPnL)
		}
		table.Append([]string{
			t.ID,
			t.Date.Format(dateLayout),
			t.StockName,
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			money(t.EntryPrice),
			money(t.SLPrice),
			money(t.TargetPrice),
			exit,
			t.Outcome().Label(),
			money(b.RiskRewardRatio),
			pnl,
			t.Strategy,
		})
	}

	table.Render()
}

func renderSummary(w io.Writer, s models.DailySummary) {
	fmt.Fprintf(w, "%s: %d trades (%d closed), P&L %s, win rate %.0f%%\n",
		s.Date.Format(dateLayout), s.TotalTrades, s.ClosedTrades, money(s.PnL), s.WinRate)
}

func renderBreakdown(w io.Writer, b metrics.Breakdown) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"SL amount", money(b.SLAmount)})
	table.Append([]string{"Reward amount", money(b.RewardAmount)})
	table.Append([]string{"Risk:reward", money(b.RiskRewardRatio)})
	if b.RealizedPnL != nil {
		table.Append([]string{"P&L", money(*b.RealizedPnL)})
	} else {
		table.Append([]string{"P&L", "open"})
	}
	table.Render()
}

func renderList[T any](w io.Writer, header string, items []T, format func(T) string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{header})
	for _, item := range items {
		table.Append([]string{format(item)})
	}
	table.Render()
}
