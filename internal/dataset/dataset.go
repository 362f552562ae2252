// Package dataset loads sales datasets from JSON and runs optional
// data-quality checks before they reach the analyzer.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/sales-analytics/internal/model"
)

// File names read by LoadDir.
const (
	SellersFile         = "sellers.json"
	ProductsFile        = "products.json"
	PurchaseRecordsFile = "purchase_records.json"
)

var (
	// ErrInvalidDataset is returned by Validate when the dataset fails a
	// data-quality check.
	ErrInvalidDataset = errors.New("dataset: invalid dataset")

	// ErrMalformed is returned when the JSON cannot be decoded.
	ErrMalformed = errors.New("dataset: malformed json")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Decimals are checked as numbers so gte/lte apply to them.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if dv, ok := field.Interface().(decimal.Decimal); ok {
			return dv.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	// Report json field names in errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode reads one JSON document of the form
// {"sellers": [...], "products": [...], "purchase_records": [...]}.
func Decode(r io.Reader) (*model.Dataset, error) {
	var ds model.Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &ds, nil
}

// LoadFile decodes a single-document dataset from path.
func LoadFile(path string) (*model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}

// LoadDir reads sellers.json, products.json and purchase_records.json from
// dir in parallel. Each file holds a JSON array.
func LoadDir(ctx context.Context, dir string) (*model.Dataset, error) {
	var ds model.Dataset
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return readArray(ctx, filepath.Join(dir, SellersFile), &ds.Sellers) })
	g.Go(func() error { return readArray(ctx, filepath.Join(dir, ProductsFile), &ds.Products) })
	g.Go(func() error { return readArray(ctx, filepath.Join(dir, PurchaseRecordsFile), &ds.PurchaseRecords) })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ds, nil
}

func readArray(ctx context.Context, path string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, filepath.Base(path), err)
	}
	return nil
}

// Validate checks field constraints (positive quantities, non-negative
// prices, discount within [0, 100]), id uniqueness, and that every seller id
// and sku referenced by a purchase record exists. The analyzer itself does
// not enforce ranges; callers that want strict input run this first.
func Validate(ds *model.Dataset) error {
	if ds == nil {
		return fmt.Errorf("%w: dataset is nil", ErrInvalidDataset)
	}
	if err := validate.Struct(ds); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrInvalidDataset, describe(verrs))
		}
		return fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}

	sellers := make(map[string]struct{}, len(ds.Sellers))
	for _, s := range ds.Sellers {
		if _, dup := sellers[s.ID]; dup {
			return fmt.Errorf("%w: duplicate seller id %q", ErrInvalidDataset, s.ID)
		}
		sellers[s.ID] = struct{}{}
	}
	products := make(map[string]struct{}, len(ds.Products))
	for _, p := range ds.Products {
		if _, dup := products[p.SKU]; dup {
			return fmt.Errorf("%w: duplicate sku %q", ErrInvalidDataset, p.SKU)
		}
		products[p.SKU] = struct{}{}
	}

	for i, rec := range ds.PurchaseRecords {
		if _, ok := sellers[rec.SellerID]; !ok {
			return fmt.Errorf("%w: purchase_records[%d]: unknown seller %q", ErrInvalidDataset, i, rec.SellerID)
		}
		for j, it := range rec.Items {
			if _, ok := products[it.SKU]; !ok {
				return fmt.Errorf("%w: purchase_records[%d].items[%d]: unknown sku %q", ErrInvalidDataset, i, j, it.SKU)
			}
		}
	}
	return nil
}

func describe(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Dataset.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
