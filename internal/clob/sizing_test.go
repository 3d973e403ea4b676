package clob

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCleanOrderAmounts_AlreadyExact(t *testing.T) {
	size, price := CleanOrderAmounts(d("10"), d("0.50"))
	if !size.Equal(d("10")) || !price.Equal(d("0.5")) {
		t.Fatalf("got size=%s price=%s", size, price)
	}
}

func TestCleanOrderAmounts_TruncatesInputs(t *testing.T) {
	size, price := CleanOrderAmounts(d("10.567"), d("0.509"))
	product := size.Mul(price)
	if !product.Equal(product.Truncate(2)) {
		t.Fatalf("product %s not 2-decimal exact", product)
	}
	if size.GreaterThan(d("10.56")) || price.GreaterThan(d("0.50")) {
		t.Fatalf("inputs not truncated: size=%s price=%s", size, price)
	}
}

func TestCleanOrderAmounts_ShavesSize(t *testing.T) {
	// 0.11 * 0.50 = 0.055 -> shaving to 0.10 fixes it without touching price.
	size, price := CleanOrderAmounts(d("0.11"), d("0.50"))
	if !size.Equal(d("0.1")) {
		t.Fatalf("size=%s want 0.1", size)
	}
	if !price.Equal(d("0.5")) {
		t.Fatalf("price=%s want 0.5 unchanged", price)
	}
}

func TestCleanOrderAmounts_AdjustsPriceForSmallRemainders(t *testing.T) {
	// 0.07 shares: no size in {0.01..0.07} makes an exact product at 0.53,
	// so the price must step down.
	size, price := CleanOrderAmounts(d("0.07"), d("0.53"))
	if !size.IsPositive() {
		t.Fatalf("expected dust remainder to stay sellable")
	}
	product := size.Mul(price)
	if !product.Equal(product.Truncate(2)) {
		t.Fatalf("product %s not 2-decimal exact", product)
	}
	if price.LessThan(d("0.48")) {
		t.Fatalf("price dropped more than 5 cents: %s", price)
	}
}

func TestCleanOrderAmounts_GivesUp(t *testing.T) {
	size, price := CleanOrderAmounts(d("0.01"), d("0.03"))
	// 0.01 shares at 0.03 or below can never produce a 2-decimal product.
	if size.IsPositive() {
		t.Fatalf("expected zero size, got %s @ %s", size, price)
	}
	if !price.Equal(d("0.03")) {
		t.Fatalf("failure should report the truncated input price, got %s", price)
	}
}

func TestSizeEntryBuy_WholeSharesNoSlippage(t *testing.T) {
	size, price := SizeEntryBuy(d("10"), d("0.52"), 0)
	if !price.Equal(d("0.52")) {
		t.Fatalf("price=%s want 0.52", price)
	}
	if !size.Equal(d("19")) {
		t.Fatalf("size=%s want 19 whole shares", size)
	}
}

func TestSizeEntryBuy_SlippageLoosensPriceNotShares(t *testing.T) {
	size, price := SizeEntryBuy(d("10"), d("0.52"), 2)
	if price.LessThan(d("0.52")) || price.GreaterThan(d("0.54")) {
		t.Fatalf("price=%s want within [0.52, 0.54]", price)
	}
	// Collateral stays capped at 19 * 0.52 = 9.88.
	if size.Mul(price).GreaterThan(d("9.88")) {
		t.Fatalf("collateral %s exceeds cap 9.88", size.Mul(price))
	}
	product := size.Mul(price)
	if !product.Equal(product.Truncate(2)) {
		t.Fatalf("product %s not 2-decimal exact", product)
	}
}

func TestSizeEntryBuy_SlippageCappedAt99Cents(t *testing.T) {
	_, price := SizeEntryBuy(d("10"), d("0.98"), 5)
	if price.GreaterThan(d("0.99")) {
		t.Fatalf("price=%s must not exceed 0.99", price)
	}
}

func TestSizeEntryBuy_BudgetBelowOneShareStillBuysOne(t *testing.T) {
	size, price := SizeEntryBuy(d("0.30"), d("0.52"), 0)
	if !size.Equal(d("1")) || !price.Equal(d("0.52")) {
		t.Fatalf("got size=%s price=%s, want 1 @ 0.52", size, price)
	}
}
