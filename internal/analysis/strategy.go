package analysis

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/sales-analytics/internal/model"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)

	// Bonus multipliers by rank tier.
	topBonusRate    = decimal.RequireFromString("0.15")
	podiumBonusRate = decimal.RequireFromString("0.10")
	baseBonusRate   = decimal.RequireFromString("0.05")
)

// CalculateSimpleRevenue computes the revenue of one line item:
//
//	revenue = sale_price * quantity * (1 - discount/100)
//
// The discount range is not checked here; see dataset.Validate.
// The product card is accepted so alternative formulas can use it.
func CalculateSimpleRevenue(item model.LineItem, _ model.Product) decimal.Decimal {
	discount := one.Sub(item.Discount.Div(hundred))
	return item.SalePrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Mul(discount)
}

// CalculateBonusByProfit assigns a bonus by 0-based profit rank:
//
//	rank 0           → 15% of profit
//	rank 1 or 2      → 10% of profit
//	rank total-1     → 0
//	everything else  → 5% of profit
//
// The top-three tiers are checked before the last-place tier, so with one
// or two sellers nobody falls into the zero tier.
func CalculateBonusByProfit(rank, total int, seller SellerStat) decimal.Decimal {
	switch {
	case rank == 0:
		return seller.Profit.Mul(topBonusRate)
	case rank == 1 || rank == 2:
		return seller.Profit.Mul(podiumBonusRate)
	case rank == total-1:
		return decimal.Zero
	default:
		return seller.Profit.Mul(baseBonusRate)
	}
}

// DefaultOptions returns Options bound to the simple revenue formula and
// the profit-rank bonus policy.
func DefaultOptions() *Options {
	return &Options{
		CalculateRevenue: CalculateSimpleRevenue,
		CalculateBonus:   CalculateBonusByProfit,
	}
}
