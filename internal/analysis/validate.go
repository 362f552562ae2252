package analysis

import (
	"fmt"

	"github.com/atmx/sales-analytics/internal/model"
)

// validateInput rejects a missing dataset or any empty top-level collection.
func validateInput(data *model.Dataset) error {
	if data == nil {
		return fmt.Errorf("%w: dataset is nil", ErrInvalidInputData)
	}
	switch {
	case len(data.Sellers) == 0:
		return fmt.Errorf("%w: sellers is empty", ErrInvalidInputData)
	case len(data.Products) == 0:
		return fmt.Errorf("%w: products is empty", ErrInvalidInputData)
	case len(data.PurchaseRecords) == 0:
		return fmt.Errorf("%w: purchase_records is empty", ErrInvalidInputData)
	}
	return nil
}

func validateOptions(opts *Options) error {
	if opts == nil {
		return ErrInvalidOptions
	}
	if opts.CalculateRevenue == nil || opts.CalculateBonus == nil {
		return ErrMissingStrategyFunctions
	}
	return nil
}
