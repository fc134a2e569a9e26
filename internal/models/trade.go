package models

import "time"

// Trade represents one recorded position in the journal.
type Trade struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Date        time.Time `json:"date"`
	StockName   string    `json:"stockName"`
	Quantity    float64   `json:"quantity"`
	EntryPrice  float64   `json:"entryPrice"`
	SLPrice     float64   `json:"slPrice"`
	TargetPrice float64   `json:"targetPrice"`
	ExitPrice   *float64  `json:"exitPrice,omitempty"` // nil while the trade is open
	TrailedSL   bool      `json:"trailedSL"`
	SLHit       bool      `json:"slHit"`
	Strategy    string    `json:"strategy"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsClosed reports whether the trade has an exit price.
func (t Trade) IsClosed() bool {
	return t.ExitPrice != nil
}

// Outcome derives the trade outcome from its exit price and flags.
// A stop-loss hit wins over a trailed stop when both flags are set on legacy data.
func (t Trade) Outcome() Outcome {
	switch {
	case !t.IsClosed():
		return OutcomeOpen
	case t.SLHit:
		return OutcomeStopLossHit
	case t.TrailedSL:
		return OutcomeTrailedStopLoss
	default:
		return OutcomeTargetHit
	}
}

// OnDate reports whether the trade falls on the same calendar day as d.
// Time of day is ignored.
func (t Trade) OnDate(d time.Time) bool {
	ty, tm, td := t.Date.Date()
	dy, dm, dd := d.Date()
	return ty == dy && tm == dm && td == dd
}

// TradeInput carries every user-supplied field of a new trade.
// Identity, owner and timestamps are assigned by the store.
type TradeInput struct {
	Date        time.Time `json:"date"`
	StockName   string    `json:"stockName"`
	Quantity    float64   `json:"quantity"`
	EntryPrice  float64   `json:"entryPrice"`
	SLPrice     float64   `json:"slPrice"`
	TargetPrice float64   `json:"targetPrice"`
	ExitPrice   *float64  `json:"exitPrice,omitempty"`
	TrailedSL   bool      `json:"trailedSL"`
	SLHit       bool      `json:"slHit"`
	Strategy    string    `json:"strategy"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// TradePatch is a partial update. Nil fields are left untouched.
type TradePatch struct {
	Date        *time.Time `json:"date,omitempty"`
	StockName   *string    `json:"stockName,omitempty"`
	Quantity    *float64   `json:"quantity,omitempty"`
	EntryPrice  *float64   `json:"entryPrice,omitempty"`
	SLPrice     *float64   `json:"slPrice,omitempty"`
	TargetPrice *float64   `json:"targetPrice,omitempty"`
	ExitPrice   *float64   `json:"exitPrice,omitempty"`
	// ClearExitPrice reopens the trade. It takes precedence over ExitPrice.
	ClearExitPrice bool    `json:"clearExitPrice,omitempty"`
	TrailedSL      *bool   `json:"trailedSL,omitempty"`
	SLHit          *bool   `json:"slHit,omitempty"`
	Strategy       *string `json:"strategy,omitempty"`
	ImageURL       *string `json:"imageUrl,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

// Apply copies the set fields of p onto t.
func (p TradePatch) Apply(t *Trade) {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.StockName != nil {
		t.StockName = *p.StockName
	}
	if p.Quantity != nil {
		t.Quantity = *p.Quantity
	}
	if p.EntryPrice != nil {
		t.EntryPrice = *p.EntryPrice
	}
	if p.SLPrice != nil {
		t.SLPrice = *p.SLPrice
	}
	if p.TargetPrice != nil {
		t.TargetPrice = *p.TargetPrice
	}
	if p.ExitPrice != nil {
		exit := *p.ExitPrice
		t.ExitPrice = &exit
	}
	if p.ClearExitPrice {
		t.ExitPrice = nil
	}
	if p.TrailedSL != nil {
		t.TrailedSL = *p.TrailedSL
	}
	if p.SLHit != nil {
		t.SLHit = *p.SLHit
	}
	if p.Strategy != nil {
		t.Strategy = *p.Strategy
	}
	if p.ImageURL != nil {
		t.ImageURL = *p.ImageURL
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
}

// Input returns the user-supplied fields of t, used to revalidate after a patch.
func (t Trade) Input() TradeInput {
	return TradeInput{
		Date:        t.Date,
		StockName:   t.StockName,
		Quantity:    t.Quantity,
		EntryPrice:  t.EntryPrice,
		SLPrice:     t.SLPrice,
		TargetPrice: t.TargetPrice,
		ExitPrice:   t.ExitPrice,
		TrailedSL:   t.TrailedSL,
		SLHit:       t.SLHit,
		Strategy:    t.Strategy,
		ImageURL:    t.ImageURL,
		Notes:       t.Notes,
	}
}

// Clone returns a deep copy so callers cannot alias the store's exit price.
func (t Trade) Clone() Trade {
	if t.ExitPrice != nil {
		exit := *t.ExitPrice
		t.ExitPrice = &exit
	}
	return t
}
