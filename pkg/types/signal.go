package types

// Direction is the bias reported by the signal producer
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Signal is the opaque output of the external signal producer.
type Signal struct {
	Direction    Direction `json:"direction"`
	Confidence   float64   `json:"confidence"`
	CurrentPrice float64   `json:"current_price"`
	ExitSignal   bool      `json:"exit_signal"`
}

// IsEntry reports whether the signal asks for a long entry at or above the threshold
func (s Signal) IsEntry(threshold float64) bool {
	return s.Direction == DirectionLong && s.Confidence >= threshold
}
