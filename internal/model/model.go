// Package model defines the domain types shared across the sales analytics
// service: the raw dataset consumed by the analyzer and the reports it produces.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Seller is a salesperson from the input dataset.
type Seller struct {
	ID        string `json:"id" validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	StartDate string `json:"start_date,omitempty"`
	Position  string `json:"position,omitempty"`
}

// Product is a catalog card. PurchasePrice is the unit cost to the business.
type Product struct {
	SKU           string          `json:"sku" validate:"required"`
	Name          string          `json:"name,omitempty"`
	Category      string          `json:"category,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price" validate:"gte=0"`
	SalePrice     decimal.Decimal `json:"sale_price"`
}

// LineItem is one product line inside a purchase record.
// Discount is a percentage in [0, 100].
type LineItem struct {
	SKU       string          `json:"sku" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	SalePrice decimal.Decimal `json:"sale_price" validate:"gte=0"`
	Discount  decimal.Decimal `json:"discount" validate:"gte=0,lte=100"`
}

// PurchaseRecord is a single receipt attributed to one seller.
type PurchaseRecord struct {
	ReceiptID     string          `json:"receipt_id,omitempty"`
	Date          string          `json:"date,omitempty"`
	SellerID      string          `json:"seller_id" validate:"required"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Items         []LineItem      `json:"items" validate:"required,min=1,dive"`
	TotalAmount   decimal.Decimal `json:"total_amount" validate:"gte=0"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
}

// Dataset is the complete, already-parsed input of one analysis run.
type Dataset struct {
	Sellers         []Seller         `json:"sellers" validate:"required,min=1,dive"`
	Products        []Product        `json:"products" validate:"required,min=1,dive"`
	PurchaseRecords []PurchaseRecord `json:"purchase_records" validate:"required,min=1,dive"`
}

// TopProduct is a sku with the cumulative quantity a seller sold of it.
type TopProduct struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// SellerReport is the per-seller line of an analysis result.
// Revenue, Profit and Bonus are rounded to 2 decimal places.
type SellerReport struct {
	SellerID    string          `json:"seller_id"`
	Name        string          `json:"name"`
	Revenue     decimal.Decimal `json:"revenue"`
	Profit      decimal.Decimal `json:"profit"`
	SalesCount  int             `json:"sales_count"`
	TopProducts []TopProduct    `json:"top_products"`
	Bonus       decimal.Decimal `json:"bonus"`
}

// Report is a stored analysis run. Sellers are ordered by profit descending,
// so a seller's rank is its index. Totals are sums of the rounded lines.
type Report struct {
	ID           string          `json:"id" db:"id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	SellerCount  int             `json:"seller_count" db:"seller_count"`
	RecordCount  int             `json:"record_count" db:"record_count"`
	TotalRevenue decimal.Decimal `json:"total_revenue" db:"total_revenue"`
	TotalProfit  decimal.Decimal `json:"total_profit" db:"total_profit"`
	TotalBonus   decimal.Decimal `json:"total_bonus" db:"total_bonus"`
	Sellers      []SellerReport  `json:"sellers,omitempty"`
}

// SellerSnapshot is one seller's line from one stored report.
type SellerSnapshot struct {
	ReportID  string    `json:"report_id"`
	CreatedAt time.Time `json:"created_at"`
	Rank      int       `json:"rank"` // 0-based
	SellerReport
}

// NewReport builds a Report around an analysis result and fills in totals.
func NewReport(id string, createdAt time.Time, recordCount int, sellers []SellerReport) *Report {
	r := &Report{
		ID:           id,
		CreatedAt:    createdAt,
		SellerCount:  len(sellers),
		RecordCount:  recordCount,
		TotalRevenue: decimal.Zero,
		TotalProfit:  decimal.Zero,
		TotalBonus:   decimal.Zero,
		Sellers:      sellers,
	}
	for _, s := range sellers {
		r.TotalRevenue = r.TotalRevenue.Add(s.Revenue)
		r.TotalProfit = r.TotalProfit.Add(s.Profit)
		r.TotalBonus = r.TotalBonus.Add(s.Bonus)
	}
	return r
}
