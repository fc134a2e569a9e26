package models

import "time"

// DailySummary aggregates the trades of one calendar day. It is derived, never stored.
type DailySummary struct {
	Date         time.Time `json:"date"`
	TotalTrades  int       `json:"totalTrades"`
	ClosedTrades int       `json:"closedTrades"`
	PnL          float64   `json:"pnl"`
	// WinRate is winners over all trades of the day, open ones included, times 100.
	WinRate float64 `json:"winRate"`
}

