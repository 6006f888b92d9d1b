package types

import "fmt"

// OrderAction is the side of an order intent
type OrderAction string

const (
	ActionBuy  OrderAction = "BUY"
	ActionSell OrderAction = "SELL"
)

// OrderIntent is an approved trade handed to the execution controller.
// IsExit suppresses the entry price/time update and starts the exit cooldown.
type OrderIntent struct {
	Symbol   string      `json:"symbol"`
	Action   OrderAction `json:"action"`
	Quantity int64       `json:"quantity"`
	Price    float64     `json:"price"`
	IsExit   bool        `json:"is_exit"`
}

func (o OrderIntent) String() string {
	kind := "entry"
	if o.IsExit {
		kind = "exit"
	}
	return fmt.Sprintf("%s %d %s @ %.4f (%s)", o.Action, o.Quantity, o.Symbol, o.Price, kind)
}

// Fill is the venue's acknowledgement of a market order
type Fill struct {
	OrderID     string
	OrderLinkID string
	Symbol      string
	Action      OrderAction
	Quantity    int64
	Price       float64
}
