package volbot

import (
	"context"

	"poly-volbot/internal/clob"
	"poly-volbot/internal/coinbase"
)

// Venue is the slice of the exchange client the trading core needs. Tests
// substitute a scripted implementation.
type Venue interface {
	PlaceMarketBuy(ctx context.Context, tokenID string, dollars, priceHint float64, slippageCents int) (clob.Receipt, error)
	PlaceMarketSell(ctx context.Context, tokenID string, shares, price float64) (clob.Receipt, error)
	PlaceLimitSell(ctx context.Context, tokenID string, shares, price float64) (clob.Receipt, error)
	BestPrices(ctx context.Context, tokenID string) (bid, ask float64, err error)
}

var _ Venue = (*clob.Client)(nil)

// TokenPair maps signal directions onto the market's two outcome tokens.
type TokenPair struct {
	Up   string
	Down string
}

// For returns the token a move in direction d should buy.
func (t TokenPair) For(d coinbase.Direction) string {
	if d == coinbase.DirectionDown {
		return t.Down
	}
	return t.Up
}
