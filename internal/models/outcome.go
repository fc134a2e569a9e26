package models

// Outcome is the result of a trade.
type Outcome string

const (
	OutcomeOpen            Outcome = "open"
	OutcomeTargetHit       Outcome = "target_hit"
	OutcomeTrailedStopLoss Outcome = "trailed_stop_loss"
	OutcomeStopLossHit     Outcome = "stop_loss_hit"
)

// Label is the short text shown next to a trade.
func (o Outcome) Label() string {
	switch o {
	case OutcomeTargetHit:
		return "Target Hit"
	case OutcomeTrailedStopLoss:
		return "Trailed SL"
	case OutcomeStopLossHit:
		return "SL Hit"
	default:
		return "Open"
	}
}
