package bybit

import (
	"context"
	"strconv"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

// OrderSide is Bybit's order side notation
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

func sideFor(action types.OrderAction) OrderSide {
	if action == types.ActionSell {
		return OrderSideSell
	}
	return OrderSideBuy
}

// PlaceMarketOrder submits a market order. The fill price is the request's
// reference price since Bybit acknowledges orders before they execute.
func (c *Client) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (*types.Fill, error) {
	apiParams := map[string]interface{}{
		"category":  c.config.Category,
		"symbol":    req.Symbol,
		"side":      string(sideFor(req.Action)),
		"orderType": "Market",
		"qty":       strconv.FormatInt(req.Quantity, 10),
	}
	if c.config.Category == "spot" && req.Action == types.ActionBuy {
		// spot market buys default to quote units
		apiParams["marketUnit"] = "baseCoin"
	}
	if req.OrderLinkID != "" {
		apiParams["orderLinkId"] = req.OrderLinkID
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
	if err != nil {
		return nil, errors.NewVenueUnavailable("bybit", "place_order", err)
	}

	ack, err := parseOrderResponse(result)
	if err != nil {
		return nil, err
	}

	return &types.Fill{
		OrderID:     ack.OrderID,
		OrderLinkID: ack.OrderLinkID,
		Symbol:      req.Symbol,
		Action:      req.Action,
		Quantity:    req.Quantity,
		Price:       req.Price,
	}, nil
}

type orderAck struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

func parseOrderResponse(response interface{}) (*orderAck, error) {
	var ack orderAck
	if err := decodeResult("place_order", response, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}
