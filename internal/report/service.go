// Package report provides the HTTP handlers for running sales analyses,
// storing the resulting reports, and querying or exporting them.
//
// All monetary values use shopspring/decimal — never float64 for money.
package report

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atmx/sales-analytics/internal/analysis"
	"github.com/atmx/sales-analytics/internal/dataset"
	"github.com/atmx/sales-analytics/internal/exporter"
	"github.com/atmx/sales-analytics/internal/metrics"
	"github.com/atmx/sales-analytics/internal/model"
	"github.com/atmx/sales-analytics/internal/store"
)

// Settings tunes request handling.
type Settings struct {
	// StrictValidation runs dataset.Validate before the analysis.
	StrictValidation bool
	// MaxBodyBytes caps the request body; 0 means unlimited.
	MaxBodyBytes int64
}

// Service handles report operations. The analysis itself is stateless, so
// handlers need no locking; concurrency control is left to the store.
type Service struct {
	store    store.Store
	wsHub    *WSHub // optional WebSocket hub for real-time broadcasts
	options  *analysis.Options
	settings Settings
	now      func() time.Time
}

// NewService creates a new report service using the default revenue and
// bonus formulas. Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub, settings Settings) *Service {
	return &Service{
		store:    st,
		wsHub:    hub,
		options:  analysis.DefaultOptions(),
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// --- HTTP Handlers ---

// Analyze handles POST /api/v1/analyze
// Runs the analysis and returns the seller lines without storing them.
func (s *Service) Analyze(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.decodeDataset(w, r)
	if !ok {
		return
	}

	sellers, status, err := s.analyze(ds)
	if err != nil {
		writeError(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, sellers)
}

// CreateReport handles POST /api/v1/reports
// Runs the analysis, stores the report and broadcasts it.
func (s *Service) CreateReport(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.decodeDataset(w, r)
	if !ok {
		return
	}

	sellers, status, err := s.analyze(ds)
	if err != nil {
		writeError(w, err.Error(), status)
		return
	}

	rep := model.NewReport(uuid.New().String(), s.now(), len(ds.PurchaseRecords), sellers)

	if err := s.store.SaveReport(r.Context(), rep); err != nil {
		slog.Error("failed to store report", "report_id", rep.ID, "err", err)
		writeError(w, "failed to store report", http.StatusInternalServerError)
		return
	}
	metrics.ReportsStored.Inc()

	slog.Info("report created",
		"report_id", rep.ID,
		"sellers", rep.SellerCount,
		"records", rep.RecordCount,
		"total_revenue", rep.TotalRevenue.String(),
		"total_profit", rep.TotalProfit.String(),
	)

	if s.wsHub != nil {
		msg := WSMessage{
			Type:         "report_created",
			ReportID:     rep.ID,
			SellerCount:  rep.SellerCount,
			RecordCount:  rep.RecordCount,
			TotalRevenue: rep.TotalRevenue.String(),
			TotalProfit:  rep.TotalProfit.String(),
		}
		if len(rep.Sellers) > 0 {
			msg.TopSellerID = rep.Sellers[0].SellerID
		}
		s.wsHub.Broadcast(msg)
	}

	writeJSON(w, http.StatusCreated, rep)
}

// ListReports handles GET /api/v1/reports
func (s *Service) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListReports(r.Context())
	if err != nil {
		writeError(w, "failed to list reports", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []model.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// GetReport handles GET /api/v1/reports/{reportID}
func (s *Service) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetSellerLine handles GET /api/v1/reports/{reportID}/sellers/{sellerID}
func (s *Service) GetSellerLine(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	sellerID := chi.URLParam(r, "sellerID")
	for rank, line := range rep.Sellers {
		if line.SellerID == sellerID {
			writeJSON(w, http.StatusOK, model.SellerSnapshot{
				ReportID:     rep.ID,
				CreatedAt:    rep.CreatedAt,
				Rank:         rank,
				SellerReport: line,
			})
			return
		}
	}
	writeError(w, "seller not found in report", http.StatusNotFound)
}

// ExportReport handles GET /api/v1/reports/{reportID}/export?format=csv|xlsx
func (s *Service) ExportReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = exporter.FormatCSV
	}
	if format != exporter.FormatCSV && format != exporter.FormatXLSX {
		writeError(w, "format must be csv or xlsx", http.StatusBadRequest)
		return
	}

	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="report-`+rep.ID+`.`+format+`"`)
	if err := exporter.Write(w, format, rep.Sellers); err != nil {
		// Headers are already sent; all we can do is log.
		slog.Error("report export failed", "report_id", rep.ID, "format", format, "err", err)
	}
}

// GetSellerHistory handles GET /api/v1/sellers/{sellerID}/history
func (s *Service) GetSellerHistory(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")

	history, err := s.store.GetSellerHistory(r.Context(), sellerID)
	if err != nil {
		writeError(w, "failed to load seller history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []model.SellerSnapshot{}
	}
	writeJSON(w, http.StatusOK, history)
}

// --- helpers ---

func (s *Service) decodeDataset(w http.ResponseWriter, r *http.Request) (*model.Dataset, bool) {
	body := r.Body
	if s.settings.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	}

	ds, err := dataset.Decode(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		writeError(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return ds, true
}

// analyze runs the optional strict checks and the analysis, recording
// metrics. On failure it returns the HTTP status to report.
func (s *Service) analyze(ds *model.Dataset) ([]model.SellerReport, int, error) {
	start := time.Now()

	if s.settings.StrictValidation {
		if err := dataset.Validate(ds); err != nil {
			metrics.ObserveAnalysis("invalid_dataset", start, 0, 0)
			return nil, http.StatusUnprocessableEntity, err
		}
	}

	sellers, err := analysis.AnalyzeSalesData(ds, s.options)
	switch {
	case err == nil:
		metrics.ObserveAnalysis("ok", start, len(sellers), len(ds.PurchaseRecords))
		return sellers, http.StatusOK, nil
	case errors.Is(err, analysis.ErrInvalidInputData):
		metrics.ObserveAnalysis("invalid_input", start, 0, 0)
		return nil, http.StatusBadRequest, err
	case errors.Is(err, analysis.ErrUnresolvedReference):
		metrics.ObserveAnalysis("unresolved_reference", start, 0, 0)
		return nil, http.StatusUnprocessableEntity, err
	default:
		metrics.ObserveAnalysis("error", start, 0, 0)
		slog.Error("analysis failed", "err", err)
		return nil, http.StatusInternalServerError, err
	}
}

func (s *Service) loadReport(w http.ResponseWriter, r *http.Request) (*model.Report, bool) {
	reportID := chi.URLParam(r, "reportID")

	rep, err := s.store.GetReport(r.Context(), reportID)
	if errors.Is(err, store.ErrReportNotFound) {
		writeError(w, "report not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		slog.Error("failed to load report", "report_id", reportID, "err", err)
		writeError(w, "failed to load report", http.StatusInternalServerError)
		return nil, false
	}
	return rep, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
