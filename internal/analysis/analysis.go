// Package analysis computes per-seller sales statistics from a parsed
// dataset: revenue, profit, sales count, top products and a rank-based bonus.
//
// The revenue and bonus formulas are injected through Options, so the
// aggregation pass stays independent of business-rule variations.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Sums are kept at full precision; rounding to 2 places happens only when
// the result is projected into model.SellerReport.
//
// AnalyzeSalesData is pure: it performs no I/O, keeps no state between
// calls and is safe to call concurrently for independent inputs.
package analysis

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/atmx/sales-analytics/internal/model"
)

var (
	// ErrInvalidInputData is returned when the dataset is nil or one of
	// its collections is empty.
	ErrInvalidInputData = errors.New("analysis: invalid input data")

	// ErrInvalidOptions is returned when no Options are supplied.
	ErrInvalidOptions = errors.New("analysis: options must be provided")

	// ErrMissingStrategyFunctions is returned when Options lacks the
	// revenue or the bonus function.
	ErrMissingStrategyFunctions = errors.New("analysis: options require CalculateRevenue and CalculateBonus")

	// ErrUnresolvedReference is returned when a purchase record names an
	// unknown seller or a line item names an unknown sku. The whole
	// analysis is aborted.
	ErrUnresolvedReference = errors.New("analysis: unresolved reference")
)

// TopProductsLimit is the maximum number of entries in a seller's top products.
const TopProductsLimit = 10

// RevenueFunc computes the revenue of one line item. The product card is
// resolved by sku before the call.
type RevenueFunc func(item model.LineItem, product model.Product) decimal.Decimal

// BonusFunc computes a seller's bonus from its 0-based rank in the
// profit-descending ordering and the total number of sellers.
type BonusFunc func(rank, total int, seller SellerStat) decimal.Decimal

// Options binds the two pluggable formulas. Both are required.
type Options struct {
	CalculateRevenue RevenueFunc
	CalculateBonus   BonusFunc
}

// SellerStat is the running aggregate for one seller. It only lives for
// the duration of a single AnalyzeSalesData call.
type SellerStat struct {
	ID         string
	Name       string
	Revenue    decimal.Decimal
	Profit     decimal.Decimal
	SalesCount int

	// ProductsSold maps sku → cumulative quantity.
	ProductsSold map[string]int

	soldOrder   []string // skus in first-sale order, for stable ties
	bonus       decimal.Decimal
	topProducts []model.TopProduct
}

func newSellerStat(s model.Seller) *SellerStat {
	return &SellerStat{
		ID:           s.ID,
		Name:         s.FirstName + " " + s.LastName,
		Revenue:      decimal.Zero,
		Profit:       decimal.Zero,
		ProductsSold: make(map[string]int),
	}
}

func (s *SellerStat) addSold(sku string, qty int) {
	if _, ok := s.ProductsSold[sku]; !ok {
		s.soldOrder = append(s.soldOrder, sku)
	}
	s.ProductsSold[sku] += qty
}

// TopProducts returns up to limit skus ordered by quantity descending.
// Equal quantities keep first-sale order.
func (s *SellerStat) TopProducts(limit int) []model.TopProduct {
	top := make([]model.TopProduct, 0, len(s.soldOrder))
	for _, sku := range s.soldOrder {
		top = append(top, model.TopProduct{SKU: sku, Quantity: s.ProductsSold[sku]})
	}
	slices.SortStableFunc(top, func(a, b model.TopProduct) int {
		return b.Quantity - a.Quantity
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top
}

// AnalyzeSalesData aggregates the dataset per seller and returns one report
// line per seller, ordered by profit descending. Sellers with equal profit
// keep their input order.
func AnalyzeSalesData(data *model.Dataset, opts *Options) ([]model.SellerReport, error) {
	if err := validateInput(data); err != nil {
		return nil, err
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	stats, err := aggregate(data, opts.CalculateRevenue)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(stats, func(a, b *SellerStat) int {
		return b.Profit.Cmp(a.Profit)
	})

	total := len(stats)
	for rank, st := range stats {
		st.bonus = opts.CalculateBonus(rank, total, *st)
		st.topProducts = st.TopProducts(TopProductsLimit)
	}

	return project(stats), nil
}

// aggregate runs the single pass over purchase records.
func aggregate(data *model.Dataset, revenueFn RevenueFunc) ([]*SellerStat, error) {
	stats := make([]*SellerStat, 0, len(data.Sellers))
	sellerIndex := make(map[string]*SellerStat, len(data.Sellers))
	for _, s := range data.Sellers {
		st := newSellerStat(s)
		stats = append(stats, st)
		sellerIndex[s.ID] = st
	}

	productIndex := make(map[string]model.Product, len(data.Products))
	for _, p := range data.Products {
		productIndex[p.SKU] = p
	}

	for i, rec := range data.PurchaseRecords {
		seller, ok := sellerIndex[rec.SellerID]
		if !ok {
			return nil, fmt.Errorf("%w: record %d references seller %q", ErrUnresolvedReference, i, rec.SellerID)
		}
		seller.SalesCount++
		seller.Revenue = seller.Revenue.Add(rec.TotalAmount)

		for _, item := range rec.Items {
			product, ok := productIndex[item.SKU]
			if !ok {
				return nil, fmt.Errorf("%w: record %d references sku %q", ErrUnresolvedReference, i, item.SKU)
			}
			cost := product.PurchasePrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			revenue := revenueFn(item, product)
			seller.Profit = seller.Profit.Add(revenue.Sub(cost))
			seller.addSold(item.SKU, item.Quantity)
		}
	}
	return stats, nil
}

// project rounds money to 2 places and converts to the output shape.
func project(stats []*SellerStat) []model.SellerReport {
	out := make([]model.SellerReport, 0, len(stats))
	for _, st := range stats {
		out = append(out, model.SellerReport{
			SellerID:    st.ID,
			Name:        st.Name,
			Revenue:     st.Revenue.Round(2),
			Profit:      st.Profit.Round(2),
			SalesCount:  st.SalesCount,
			TopProducts: st.topProducts,
			Bonus:       st.bonus.Round(2),
		})
	}
	return out
}
