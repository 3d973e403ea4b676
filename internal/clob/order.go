package clob

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	orderbuilder "github.com/polymarket/go-order-utils/pkg/builder"
	ordermodel "github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"
)

const zeroAddressHex = "0x0000000000000000000000000000000000000000"

// onchainDecimals is the fixed-point scale of both USDC and outcome shares.
const onchainDecimals = 6

type signedOrderPayload struct {
	DeferExec bool      `json:"deferExec"`
	Order     orderJSON `json:"order"`
	Owner     string    `json:"owner"`
	OrderType OrderType `json:"orderType"`
}

type orderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          Side   `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// orderPostResponse is the raw POST /order reply.
//
// success=true does not mean filled: a killed FAK still reports success, so
// fill confirmation additionally requires an empty errorMsg.
type orderPostResponse struct {
	Success        bool   `json:"success"`
	ErrorMsg       string `json:"errorMsg"`
	OrderID        string `json:"orderID"`
	Status         string `json:"status"`
	TakingAmount   string `json:"takingAmount"`
	MakingAmount   string `json:"makingAmount"`
	TransactHashes any    `json:"transactionsHashes"`
}

func (r orderPostResponse) matched() bool {
	return r.Success || r.Status == "matched"
}

// Receipt is the normalized outcome of an order submission, with fill data
// resolved as far as the venue reports it.
type Receipt struct {
	Success  bool
	OrderID  string
	ErrorMsg string

	// Requested is the submitted size; Filled what actually executed.
	Requested decimal.Decimal
	Filled    decimal.Decimal
	// Price is the average fill price when known, else the submitted price.
	Price decimal.Decimal
}

// AnyFill reports whether any quantity executed.
func (r Receipt) AnyFill() bool {
	return r.Success && r.Filled.IsPositive()
}

func failedReceipt(size, price decimal.Decimal, msg string) Receipt {
	return Receipt{Requested: size, Price: price, ErrorMsg: msg}
}

// PlaceMarketBuy spends up to dollars on tokenID as an immediate FAK order.
// priceHint, when positive, is used as the best ask and skips the REST book
// fetch on the hot path. slippageCents loosens the limit price only.
func (c *Client) PlaceMarketBuy(ctx context.Context, tokenID string, dollars, priceHint float64, slippageCents int) (Receipt, error) {
	bestAsk := priceHint
	if bestAsk <= 0 {
		_, ask, err := c.BestPrices(ctx, tokenID)
		if err != nil {
			return Receipt{}, fmt.Errorf("fetch book for buy: %w", err)
		}
		bestAsk = ask
	}
	if bestAsk <= 0 {
		return failedReceipt(decimal.Zero, decimal.Zero, "no asks available"), nil
	}

	size, price := SizeEntryBuy(decimal.NewFromFloat(dollars), decimal.NewFromFloat(bestAsk), slippageCents)
	if !size.IsPositive() {
		return failedReceipt(size, price, "calculated size is zero"), nil
	}
	return c.submitAndResolve(ctx, tokenID, SideBuy, size, price, OrderTypeFAK)
}

// PlaceMarketSell sells shares of tokenID as an immediate FAK order at the
// given price (typically the current best bid).
func (c *Client) PlaceMarketSell(ctx context.Context, tokenID string, shares, price float64) (Receipt, error) {
	if price <= 0 {
		bid, _, err := c.BestPrices(ctx, tokenID)
		if err != nil {
			return Receipt{}, fmt.Errorf("fetch book for sell: %w", err)
		}
		price = bid
	}
	if price <= 0 {
		return failedReceipt(decimal.Zero, decimal.Zero, "no bids available"), nil
	}

	size, cleanPrice := CleanOrderAmounts(decimal.NewFromFloat(shares), decimal.NewFromFloat(price))
	if !size.IsPositive() {
		return failedReceipt(size, cleanPrice, "calculated size is zero"), nil
	}
	return c.submitAndResolve(ctx, tokenID, SideSell, size, cleanPrice, OrderTypeFAK)
}

// PlaceLimitSell rests a GTC sell on the book. Used for dust cleanup, where
// a remainder too small to market-sell is left to fill on its own.
func (c *Client) PlaceLimitSell(ctx context.Context, tokenID string, shares, price float64) (Receipt, error) {
	size, cleanPrice := CleanOrderAmounts(decimal.NewFromFloat(shares), decimal.NewFromFloat(price))
	if !size.IsPositive() {
		return failedReceipt(size, cleanPrice, "calculated size is zero"), nil
	}
	return c.submitAndResolve(ctx, tokenID, SideSell, size, cleanPrice, OrderTypeGTC)
}

func (c *Client) submitAndResolve(ctx context.Context, tokenID string, side Side, size, price decimal.Decimal, typ OrderType) (Receipt, error) {
	resp, err := c.postOrder(ctx, tokenID, side, size, price, typ)
	if err != nil {
		return failedReceipt(size, price, err.Error()), err
	}
	return c.resolveFill(ctx, resp, tokenID, side, size, price), nil
}

func (c *Client) postOrder(ctx context.Context, tokenID string, side Side, size, price decimal.Decimal, typ OrderType) (orderPostResponse, error) {
	signed, err := c.buildSignedOrder(ctx, tokenID, side, size, price)
	if err != nil {
		return orderPostResponse{}, err
	}

	body, err := c.buildPostOrderBody(signed, typ)
	if err != nil {
		return orderPostResponse{}, err
	}

	ts := nowUnix()
	headers, err := c.l2Headers(ts, http.MethodPost, "/order", body)
	if err != nil {
		return orderPostResponse{}, err
	}

	var resp orderPostResponse
	if err := c.doJSONBody(ctx, http.MethodPost, "/order", nil, headers, body, &resp); err != nil {
		return orderPostResponse{}, err
	}
	return resp, nil
}

// buildSignedOrder signs a limit-style order for the exchange contract.
// BUY: maker leg is collateral, taker leg shares. SELL: the reverse. The
// sizer guarantees both legs are exact at on-chain precision.
func (c *Client) buildSignedOrder(ctx context.Context, tokenID string, side Side, size, price decimal.Decimal) (*ordermodel.SignedOrder, error) {
	if !size.IsPositive() || !price.IsPositive() {
		return nil, fmt.Errorf("size and price must be > 0")
	}

	sharesUnits := size.Shift(onchainDecimals).Truncate(0)
	collateralUnits := size.Mul(price).Shift(onchainDecimals).Truncate(0)
	if !sharesUnits.IsPositive() || !collateralUnits.IsPositive() {
		return nil, fmt.Errorf("order amounts round to zero (size=%s price=%s)", size, price)
	}

	var (
		sideEnum    ordermodel.Side
		makerAmount string
		takerAmount string
	)
	switch side {
	case SideBuy:
		sideEnum = ordermodel.BUY
		makerAmount = collateralUnits.String()
		takerAmount = sharesUnits.String()
	case SideSell:
		sideEnum = ordermodel.SELL
		makerAmount = sharesUnits.String()
		takerAmount = collateralUnits.String()
	default:
		return nil, fmt.Errorf("invalid side %q", side)
	}

	feeBps, err := c.GetFeeRateBps(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	negRisk, err := c.GetNegRisk(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	contract := ordermodel.CTFExchange
	if negRisk {
		contract = ordermodel.NegRiskCTFExchange
	}

	od := &ordermodel.OrderData{
		Maker:         c.funder.Hex(),
		Taker:         zeroAddressHex,
		TokenId:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		FeeRateBps:    strconv.Itoa(feeBps),
		Nonce:         "0",
		Signer:        c.signer.Hex(),
		Expiration:    "0",
		Side:          sideEnum,
		SignatureType: ordermodel.SignatureType(c.signatureTy),
	}

	return signOrder(c.chainID, c.privateKey, od, contract, c.nextSalt)
}

func signOrder(chainID int64, pk *ecdsa.PrivateKey, od *ordermodel.OrderData, contract ordermodel.VerifyingContract, saltGen func() int64) (*ordermodel.SignedOrder, error) {
	b := orderbuilder.NewExchangeOrderBuilderImpl(big.NewInt(chainID), saltGen)
	return b.BuildSignedOrder(pk, od, contract)
}

func (c *Client) buildPostOrderBody(order *ordermodel.SignedOrder, orderType OrderType) ([]byte, error) {
	if order == nil {
		return nil, fmt.Errorf("order required")
	}
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()

	owner := ""
	if creds != nil {
		owner = creds.Key
	}

	payload := signedOrderPayload{
		Owner:     owner,
		OrderType: orderType,
		Order: orderJSON{
			Salt:          order.Salt.Int64(),
			Maker:         order.Maker.Hex(),
			Signer:        order.Signer.Hex(),
			Taker:         order.Taker.Hex(),
			TokenID:       order.TokenId.String(),
			MakerAmount:   order.MakerAmount.String(),
			TakerAmount:   order.TakerAmount.String(),
			Expiration:    order.Expiration.String(),
			Nonce:         order.Nonce.String(),
			FeeRateBps:    order.FeeRateBps.String(),
			Side:          sideToString(order.Side),
			SignatureType: int(order.SignatureType.Int64()),
			Signature:     "0x" + fmt.Sprintf("%x", order.Signature),
		},
	}
	return json.Marshal(payload)
}

func sideToString(v *big.Int) Side {
	if v == nil {
		return SideBuy
	}
	if v.Int64() == int64(ordermodel.SELL) {
		return SideSell
	}
	return SideBuy
}
