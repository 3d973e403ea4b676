package clob

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	fillPollAttempts = 2
	fillPollDelay    = 250 * time.Millisecond
	tradeLookback    = 20
)

func nowUnix() int64 { return time.Now().Unix() }

// resolveFill turns a raw order response into a Receipt, chasing fill data
// through progressively more expensive sources:
//
//  1. takingAmount/makingAmount in the response itself (FAK fills report
//     these directly)
//  2. short polling of the order status for size_matched
//  3. the recent-trades feed, matched by taker order ID
//  4. assume a full fill at the submitted price when the venue reported
//     success but exposed no fill data anywhere
func (c *Client) resolveFill(ctx context.Context, resp orderPostResponse, tokenID string, side Side, submittedSize, submittedPrice decimal.Decimal) Receipt {
	rec := Receipt{
		Success:   resp.matched(),
		OrderID:   resp.OrderID,
		ErrorMsg:  resp.ErrorMsg,
		Requested: submittedSize,
		Price:     submittedPrice,
	}

	if filled, price, ok := fillFromAmounts(resp, side); ok {
		rec.Filled = filled
		rec.Price = price
		return rec
	}

	if !rec.Success || rec.OrderID == "" {
		return rec
	}

	for attempt := 0; attempt < fillPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return rec
			case <-time.After(fillPollDelay):
			}
		}

		if info, err := c.GetOrder(ctx, rec.OrderID); err == nil && info != nil {
			matched := parseDecimal(info.SizeMatched)
			if matched.IsPositive() {
				rec.Filled = matched
				if p := parseDecimal(info.Price); p.IsPositive() {
					rec.Price = p
				}
				return rec
			}
		}

		// Last attempt: one extra REST call against recent trades.
		if attempt == fillPollAttempts-1 {
			if filled, price, ok := c.fillFromTrades(ctx, rec.OrderID, tokenID, side); ok {
				rec.Filled = filled
				rec.Price = price
				return rec
			}
		}
	}

	// The venue said success but never surfaced fill data; treat the order
	// as fully filled at what we asked for.
	rec.Filled = submittedSize
	return rec
}

// fillFromAmounts extracts fill size and average price from the immediate
// response. For a BUY, takingAmount is shares received and makingAmount
// collateral spent; for a SELL the roles flip.
func fillFromAmounts(resp orderPostResponse, side Side) (filled, price decimal.Decimal, ok bool) {
	taking := parseDecimal(resp.TakingAmount)
	making := parseDecimal(resp.MakingAmount)
	if !taking.IsPositive() || !making.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}

	if side == SideBuy {
		filled = taking
		price = making.Div(taking)
	} else {
		filled = making
		price = taking.Div(making)
	}
	return filled, price.Round(2), true
}

// fillFromTrades scans recent account trades for this order. Fragments are
// matched by taker order ID and summed; failing that, the most recent trade
// on the same token and side is taken as the fill.
func (c *Client) fillFromTrades(ctx context.Context, orderID, tokenID string, side Side) (decimal.Decimal, decimal.Decimal, bool) {
	trades, err := c.GetTrades(ctx, TradeParams{})
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	if len(trades) > tradeLookback {
		trades = trades[:tradeLookback]
	}

	totalFilled := decimal.Zero
	totalValue := decimal.Zero
	for _, trade := range trades {
		size := parseDecimal(trade.Size)
		price := parseDecimal(trade.Price)

		if orderID != "" && strings.Contains(trade.TakerOrderID, orderID) {
			totalFilled = totalFilled.Add(size)
			totalValue = totalValue.Add(size.Mul(price))
			continue
		}
		if trade.AssetID == tokenID && strings.EqualFold(trade.Side, string(side)) {
			totalFilled = totalFilled.Add(size)
			totalValue = totalValue.Add(size.Mul(price))
			break // only the most recent matching trade
		}
	}

	if !totalFilled.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	return totalFilled, totalValue.Div(totalFilled), true
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
