package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/atmx/sales-analytics/internal/model"
	"github.com/atmx/sales-analytics/internal/report"
	"github.com/atmx/sales-analytics/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T, settings report.Settings, hub *report.WSHub) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := report.NewService(ms, hub, settings)

	r := chi.NewRouter()
	r.Post("/api/v1/analyze", svc.Analyze)
	r.Get("/api/v1/reports", svc.ListReports)
	r.Post("/api/v1/reports", svc.CreateReport)
	r.Get("/api/v1/reports/{reportID}", svc.GetReport)
	r.Get("/api/v1/reports/{reportID}/sellers/{sellerID}", svc.GetSellerLine)
	r.Get("/api/v1/reports/{reportID}/export", svc.ExportReport)
	r.Get("/api/v1/sellers/{sellerID}/history", svc.GetSellerHistory)
	if hub != nil {
		r.Get("/api/v1/ws", hub.HandleWS)
	}

	return ms, r
}

// sampleDataset has two sellers: s2 earns profit 60, s1 earns profit 20.
func sampleDataset() model.Dataset {
	return model.Dataset{
		Sellers: []model.Seller{
			{ID: "s1", FirstName: "Alexey", LastName: "Petrov"},
			{ID: "s2", FirstName: "Nikolai", LastName: "Ivanov"},
		},
		Products: []model.Product{
			{SKU: "A", PurchasePrice: d(10)},
			{SKU: "B", PurchasePrice: d(5)},
		},
		PurchaseRecords: []model.PurchaseRecord{
			{SellerID: "s1", TotalAmount: d(40), Items: []model.LineItem{
				{SKU: "A", Quantity: 2, SalePrice: d(20), Discount: d(0)},
			}},
			{SellerID: "s2", TotalAmount: d(80), Items: []model.LineItem{
				{SKU: "B", Quantity: 4, SalePrice: d(20), Discount: d(0)},
			}},
		},
	}
}

func post(t *testing.T, router chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf []byte
	switch v := body.(type) {
	case string:
		buf = []byte(v)
	default:
		buf, _ = json.Marshal(v)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router chi.Router, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createReport(t *testing.T, router chi.Router, ds model.Dataset) model.Report {
	t.Helper()
	w := post(t, router, "/api/v1/reports", ds)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var rep model.Report
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	return rep
}

// --- Analyze ---

func TestAnalyze_ReturnsSellerLines(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{}, nil)

	w := post(t, router, "/api/v1/analyze", sampleDataset())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var lines []model.SellerReport
	json.Unmarshal(w.Body.Bytes(), &lines)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].SellerID != "s2" || !lines[0].Profit.Equal(d(60)) || !lines[0].Bonus.Equal(d(9)) {
		t.Errorf("unexpected top line: %+v", lines[0])
	}
	// Second of two sellers gets the 10% tier, not the last-place tier.
	if lines[1].SellerID != "s1" || !lines[1].Bonus.Equal(d(2)) {
		t.Errorf("unexpected second line: %+v", lines[1])
	}
}

func TestAnalyze_InvalidBody(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{}, nil)

	w := post(t, router, "/api/v1/analyze", `{"sellers": "nope"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnalyze_EmptySellers(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{}, nil)
	ds := sampleDataset()
	ds.Sellers = nil

	w := post(t, router, "/api/v1/analyze", ds)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "invalid input data") {
		t.Errorf("expected invalid input error, got %s", w.Body.String())
	}
}

func TestAnalyze_UnknownSKU(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{}, nil)
	ds := sampleDataset()
	ds.PurchaseRecords[0].Items[0].SKU = "ghost"

	w := post(t, router, "/api/v1/analyze", ds)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyze_StrictValidation(t *testing.T) {
	ds := sampleDataset()
	ds.PurchaseRecords[0].Items[0].Discount = d(150)

	// Permissive by default: the discount is used as given.
	_, lenient := newTestEnv(t, report.Settings{}, nil)
	if w := post(t, lenient, "/api/v1/analyze", ds); w.Code != http.StatusOK {
		t.Errorf("lenient: expected 200, got %d", w.Code)
	}

	_, strict := newTestEnv(t, report.Settings{StrictValidation: true}, nil)
	w := post(t, strict, "/api/v1/analyze", ds)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("strict: expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "discount") {
		t.Errorf("strict error should name the field, got %s", w.Body.String())
	}
}

func TestAnalyze_BodyTooLarge(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{MaxBodyBytes: 16}, nil)

	w := post(t, router, "/api/v1/analyze", sampleDataset())
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

// --- Reports ---

func TestCreateReport_StoresAndReturns(t *testing.T) {
	ms, router := newTestEnv(t, report.Settings{}, nil)

	rep := createReport(t, router, sampleDataset())
	if rep.ID == "" {
		t.Fatal("expected non-empty report id")
	}
	if rep.SellerCount != 2 || rep.RecordCount != 2 {
		t.Errorf("unexpected counts: %+v", rep)
	}
	if !rep.TotalRevenue.Equal(d(120)) || !rep.TotalProfit.Equal(d(80)) || !rep.TotalBonus.Equal(d(11)) {
		t.Errorf("unexpected totals: revenue=%s profit=%s bonus=%s", rep.TotalRevenue, rep.TotalProfit, rep.TotalBonus)
	}

	stored, err := ms.GetReport(context.Background(), rep.ID)
	if err != nil {
		t.Fatalf("report not stored: %v", err)
	}
	if len(stored.Sellers) != 2 || stored.Sellers[0].SellerID != "s2" {
		t.Errorf("unexpected stored sellers: %+v", stored.Sellers)
	}
}

func TestCreateReport_FailedAnalysisStoresNothing(t *testing.T) {
	ms, router := newTestEnv(t, report.Settings{}, nil)
	ds := sampleDataset()
	ds.PurchaseRecords[1].SellerID = "ghost"

	w := post(t, router, "/api/v1/reports", ds)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	reports, _ := ms.ListReports(context.Background())
	if len(reports) != 0 {
		t.Errorf("expected no stored reports, got %d", len(reports))
	}
}

func TestGetReport(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{}, nil)
	rep := createReport(t, router, sampleDataset())

	w := get(router, "/api/v1/reports/"+rep.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got model.Report
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.ID != rep.ID || len(got.Sellers) != 2 {
		t.Errorf("unexpected report: %+v", got)
	}

	if w := get(router, "/api/v1/reports/missing"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing report, got %d", w.Code)
	}
}

func TestListReports(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{}, nil)

	w := get(router, "/api/v1/reports")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %d %s", w.Code, w.Body.String())
	}

	createReport(t, router, sampleDataset())
	createReport(t, router, sampleDataset())

	var list []model.Report
	json.Unmarshal(get(router, "/api/v1/reports").Body.Bytes(), &list)
	if len(list) != 2 {
		t.Errorf("expected 2 reports, got %d", len(list))
	}
}

func TestGetSellerLine(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{}, nil)
	rep := createReport(t, router, sampleDataset())

	w := get(router, "/api/v1/reports/"+rep.ID+"/sellers/s1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap model.SellerSnapshot
	json.Unmarshal(w.Body.Bytes(), &snap)
	if snap.Rank != 1 || snap.SellerID != "s1" || snap.ReportID != rep.ID {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	if w := get(router, "/api/v1/reports/"+rep.ID+"/sellers/ghost"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown seller, got %d", w.Code)
	}
}

func TestExportReport_CSV(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{}, nil)
	rep := createReport(t, router, sampleDataset())

	w := get(router, "/api/v1/reports/"+rep.ID+"/export?format=csv")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 || rows[1][1] != "s2" || rows[1][4] != "60.00" {
		t.Errorf("unexpected csv rows: %v", rows)
	}
}

func TestExportReport_BadFormat(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{}, nil)
	rep := createReport(t, router, sampleDataset())

	if w := get(router, "/api/v1/reports/"+rep.ID+"/export?format=pdf"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if w := get(router, "/api/v1/reports/missing/export"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetSellerHistory(t *testing.T) {
	_, router := newTestEnv(t, report.Settings{}, nil)
	createReport(t, router, sampleDataset())
	createReport(t, router, sampleDataset())

	var history []model.SellerSnapshot
	w := get(router, "/api/v1/sellers/s2/history")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &history)
	if len(history) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(history))
	}
	for _, snap := range history {
		if snap.Rank != 0 || !snap.Profit.Equal(d(60)) {
			t.Errorf("unexpected snapshot: %+v", snap)
		}
	}

	w = get(router, "/api/v1/sellers/ghost/history")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected empty history, got %s", w.Body.String())
	}
}

// --- WebSocket ---

func TestCreateReport_BroadcastsOverWebSocket(t *testing.T) {
	hub := report.NewWSHub()
	go hub.Run()
	defer hub.Stop()

	_, router := newTestEnv(t, report.Settings{}, hub)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration is asynchronous; keep creating reports until one arrives.
	received := make(chan report.WSMessage, 1)
	go func() {
		var msg report.WSMessage
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
	}()

	deadline := time.After(3 * time.Second)
	for {
		body, _ := json.Marshal(sampleDataset())
		resp, err := http.Post(srv.URL+"/api/v1/reports", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()

		select {
		case msg := <-received:
			if msg.Type != "report_created" || msg.TopSellerID != "s2" || msg.SellerCount != 2 {
				t.Errorf("unexpected message: %+v", msg)
			}
			return
		case <-deadline:
			t.Fatal("no websocket message received")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
