// Package exporter renders analysis results as CSV or XLSX.
package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/atmx/sales-analytics/internal/model"
)

// Supported export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	sellersSheet     = "Sellers"
	topProductsSheet = "Top Products"
)

var ErrUnsupportedFormat = errors.New("exporter: unsupported format")

// Header is the column layout of the seller table.
var Header = []string{"rank", "seller_id", "name", "revenue", "profit", "sales_count", "bonus", "top_products"}

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Write renders sellers in the given format.
func Write(w io.Writer, format string, sellers []model.SellerReport) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, sellers)
	case FormatXLSX:
		return WriteXLSX(w, sellers)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// WriteCSV writes one row per seller. Top products are encoded as
// "sku:qty" pairs joined by ";".
func WriteCSV(w io.Writer, sellers []model.SellerReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for rank, s := range sellers {
		if err := cw.Write(row(rank, s)); err != nil {
			return fmt.Errorf("failed to write seller %s: %w", s.SellerID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(rank int, s model.SellerReport) []string {
	return []string{
		strconv.Itoa(rank + 1),
		s.SellerID,
		s.Name,
		s.Revenue.StringFixed(2),
		s.Profit.StringFixed(2),
		strconv.Itoa(s.SalesCount),
		s.Bonus.StringFixed(2),
		formatTopProducts(s.TopProducts),
	}
}

func formatTopProducts(top []model.TopProduct) string {
	parts := make([]string, 0, len(top))
	for _, p := range top {
		parts = append(parts, p.SKU+":"+strconv.Itoa(p.Quantity))
	}
	return strings.Join(parts, ";")
}

// WriteXLSX writes a workbook with a seller sheet and a top-products sheet.
// Money columns are written as numbers.
func WriteXLSX(w io.Writer, sellers []model.SellerReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sellersSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(topProductsSheet); err != nil {
		return err
	}

	if err := setRow(f, sellersSheet, 1, stringsToCells(Header)); err != nil {
		return err
	}
	if err := setRow(f, topProductsSheet, 1, []interface{}{"seller_id", "sku", "quantity"}); err != nil {
		return err
	}

	topRow := 2
	for rank, s := range sellers {
		cells := []interface{}{
			rank + 1,
			s.SellerID,
			s.Name,
			s.Revenue.InexactFloat64(),
			s.Profit.InexactFloat64(),
			s.SalesCount,
			s.Bonus.InexactFloat64(),
			formatTopProducts(s.TopProducts),
		}
		if err := setRow(f, sellersSheet, rank+2, cells); err != nil {
			return err
		}
		for _, p := range s.TopProducts {
			if err := setRow(f, topProductsSheet, topRow, []interface{}{s.SellerID, p.SKU, p.Quantity}); err != nil {
				return err
			}
			topRow++
		}
	}

	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func stringsToCells(ss []string) []interface{} {
	cells := make([]interface{}, len(ss))
	for i, s := range ss {
		cells[i] = s
	}
	return cells
}
