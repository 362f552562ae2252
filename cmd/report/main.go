// Command report runs a sales analysis over a dataset on disk and writes the
// ranked seller lines as JSON, CSV or XLSX.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/atmx/sales-analytics/internal/analysis"
	"github.com/atmx/sales-analytics/internal/dataset"
	"github.com/atmx/sales-analytics/internal/exporter"
	"github.com/atmx/sales-analytics/internal/model"
)

const formatJSON = "json"

var errUsage = errors.New("usage error")

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			slog.Error("report failed", "error", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dataFile := fs.String("data", "", "single JSON document with sellers, products and purchase_records")
	dataDir := fs.String("dir", "", "directory containing sellers.json, products.json and purchase_records.json")
	format := fs.String("format", formatJSON, "json | csv | xlsx")
	out := fs.String("out", "", "output file path (defaults to stdout)")
	strict := fs.Bool("strict", false, "reject datasets that fail data-quality checks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if (*dataFile == "") == (*dataDir == "") {
		return fmt.Errorf("%w: exactly one of -data or -dir is required", errUsage)
	}
	switch *format {
	case formatJSON, exporter.FormatCSV, exporter.FormatXLSX:
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}

	var (
		ds  *model.Dataset
		err error
	)
	if *dataFile != "" {
		ds, err = dataset.LoadFile(*dataFile)
	} else {
		ds, err = dataset.LoadDir(ctx, *dataDir)
	}
	if err != nil {
		return err
	}

	if *strict {
		if err := dataset.Validate(ds); err != nil {
			return err
		}
	}

	sellers, err := analysis.AnalyzeSalesData(ds, analysis.DefaultOptions())
	if err != nil {
		return err
	}
	slog.Info("analysis complete",
		slog.Int("sellers", len(sellers)),
		slog.Int("purchase_records", len(ds.PurchaseRecords)),
		slog.String("format", *format))

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if *format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sellers)
	}
	return exporter.Write(w, *format, sellers)
}
