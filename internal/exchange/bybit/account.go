package bybit

import (
	"context"
	"math"
	"strings"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
)

// CoinBalance is one coin row of the unified wallet
type CoinBalance struct {
	Coin             string
	WalletBalance    float64
	AvailableToTrade float64
}

// Wallet is the subset of the wallet response the bot uses
type Wallet struct {
	TotalEquity           float64
	TotalAvailableBalance float64
	Coins                 []CoinBalance
}

// Coin returns the balance row for coin, if present
func (w *Wallet) Coin(coin string) (CoinBalance, bool) {
	for _, c := range w.Coins {
		if strings.EqualFold(c.Coin, coin) {
			return c, true
		}
	}
	return CoinBalance{}, false
}

// GetWallet retrieves the wallet balance
func (c *Client) GetWallet(ctx context.Context) (*Wallet, error) {
	params := map[string]interface{}{
		"accountType": c.config.AccountType,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, errors.NewVenueUnavailable("bybit", "get_wallet", err)
	}
	return parseWalletResponse(result)
}

func parseWalletResponse(response interface{}) (*Wallet, error) {
	var walletResult struct {
		List []struct {
			TotalEquity           string `json:"totalEquity"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			Coin                  []struct {
				Coin                string `json:"coin"`
				WalletBalance       string `json:"walletBalance"`
				AvailableToTrade    string `json:"availableToTrade"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
				Locked              string `json:"locked"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := decodeResult("get_wallet", response, &walletResult); err != nil {
		return nil, err
	}
	if len(walletResult.List) == 0 {
		return nil, errors.NewDataUnavailable("bybit", "get_wallet", "no account data found")
	}

	account := walletResult.List[0]
	wallet := &Wallet{
		TotalEquity:           parseFloat64(account.TotalEquity),
		TotalAvailableBalance: parseFloat64(account.TotalAvailableBalance),
		Coins:                 make([]CoinBalance, len(account.Coin)),
	}
	for i, coin := range account.Coin {
		available := parseFloat64(coin.AvailableToTrade)
		if available == 0 {
			// unified accounts report availableToWithdraw instead on some coins
			available = parseFloat64(coin.WalletBalance) - parseFloat64(coin.Locked)
		}
		wallet.Coins[i] = CoinBalance{
			Coin:             coin.Coin,
			WalletBalance:    parseFloat64(coin.WalletBalance),
			AvailableToTrade: available,
		}
	}
	return wallet, nil
}

// GetEquity returns total account equity
func (c *Client) GetEquity(ctx context.Context) (float64, error) {
	wallet, err := c.GetWallet(ctx)
	if err != nil {
		return 0, err
	}
	return wallet.TotalEquity, nil
}

// GetAvailableBalance returns the quote coin available for new buys
func (c *Client) GetAvailableBalance(ctx context.Context) (float64, error) {
	wallet, err := c.GetWallet(ctx)
	if err != nil {
		return 0, err
	}
	if coin, ok := wallet.Coin(c.config.QuoteCoin); ok {
		return coin.AvailableToTrade, nil
	}
	return wallet.TotalAvailableBalance, nil
}

// GetHeldQuantity returns whole units held for symbol: the base coin balance
// on spot, the position size on derivatives
func (c *Client) GetHeldQuantity(ctx context.Context, symbol string) (int64, error) {
	if c.config.Category != "spot" {
		return c.positionSize(ctx, symbol)
	}

	wallet, err := c.GetWallet(ctx)
	if err != nil {
		return 0, err
	}
	base := strings.TrimSuffix(strings.ToUpper(symbol), strings.ToUpper(c.config.QuoteCoin))
	coin, ok := wallet.Coin(base)
	if !ok {
		return 0, nil
	}
	return int64(math.Floor(coin.WalletBalance)), nil
}

func (c *Client) positionSize(ctx context.Context, symbol string) (int64, error) {
	params := map[string]interface{}{
		"category": c.config.Category,
		"symbol":   symbol,
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return 0, errors.NewVenueUnavailable("bybit", "get_positions", err)
	}
	return parsePositionSize(result, symbol)
}

func parsePositionSize(response interface{}, symbol string) (int64, error) {
	var positionResult struct {
		List []struct {
			Symbol string `json:"symbol"`
			Side   string `json:"side"`
			Size   string `json:"size"`
		} `json:"list"`
	}
	if err := decodeResult("get_positions", response, &positionResult); err != nil {
		return 0, err
	}

	var size float64
	for _, p := range positionResult.List {
		if p.Symbol == symbol && p.Side == string(OrderSideBuy) {
			size += parseFloat64(p.Size)
		}
	}
	return int64(math.Floor(size)), nil
}
