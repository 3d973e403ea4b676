package clob

import "github.com/shopspring/decimal"

// The CLOB rejects orders whose collateral leg (size x price) carries more
// than two decimals, so every order passes through CleanOrderAmounts before
// signing.

var (
	oneCent   = decimal.NewFromInt(1).Shift(-2)
	maxPrice  = decimal.RequireFromString("0.99")
	centScale = decimal.NewFromInt(100)
)

// CleanOrderAmounts finds a (size, price) pair at most as large as the
// inputs whose product has at most two decimals.
//
// The given price is tried first, shaving the size down a cent of shares at
// a time. If no size works at that price, the price is dropped by one cent
// and the search restarts, at most five cents below the input. Small
// remainders from partial fills often need this to stay sellable. Returns a
// zero size when nothing fits.
func CleanOrderAmounts(size, price decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	origSize := size.Truncate(2)
	p := price.Truncate(2)

	const maxPriceAdjustments = 5
	for i := 0; i <= maxPriceAdjustments; i++ {
		if !p.IsPositive() {
			break
		}
		s := origSize
		for s.IsPositive() {
			product := s.Mul(p)
			if product.Equal(product.Truncate(2)) {
				return s, p
			}
			s = s.Sub(oneCent)
		}
		p = p.Sub(oneCent)
	}

	return decimal.Zero, price.Truncate(2)
}

// SizeEntryBuy converts a dollar budget into a buy order against the best
// ask, with an optional slippage allowance on the limit price.
//
// Share count comes from the pre-slippage ask, so slippage loosens the
// limit without inflating the position. The collateral commitment is capped
// at wholeShares x originalAsk; if the cleaned pair degenerates or the
// cleaned price undercuts the original ask, fall back to whole shares at
// the original ask, whose product is always 2-decimal exact.
func SizeEntryBuy(dollars, bestAsk decimal.Decimal, slippageCents int) (size, price decimal.Decimal) {
	origPrice := bestAsk.Truncate(2)

	wholeShares := dollars.Div(origPrice).Floor()
	if wholeShares.LessThan(decimal.NewFromInt(1)) {
		wholeShares = decimal.NewFromInt(1)
	}

	limit := bestAsk
	if slippageCents > 0 {
		limit = bestAsk.Add(decimal.NewFromInt(int64(slippageCents)).Div(centScale))
		if limit.GreaterThan(maxPrice) {
			limit = maxPrice
		}
	}
	limit = limit.Truncate(2)

	targetUSDC := wholeShares.Mul(origPrice)
	cappedSize := targetUSDC.Div(limit).Truncate(2)

	size, price = CleanOrderAmounts(cappedSize, limit)
	if !size.IsPositive() || price.LessThan(origPrice) {
		return wholeShares, origPrice
	}
	return size, price
}
