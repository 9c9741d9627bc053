package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finboard/internal/services"
)

const testCSV = `Date,Segment,Country,Product,Discount Band,Units Sold,Gross Sales,Discounts,Sales,COGS,Profit
01/15/2020,Government,Canada,Carretera,None,100,"$1,000.00",$50.00,$950.00,$600.00,$350.00
04/10/2020,Midmarket,France,Montana,Low,200,"$2,000.00",$-,"$2,000.00","$1,400.00",$600.00
03/05/2021,Government,Germany,Carretera,High,300,"$3,000.00",$150.00,"$2,850.00","$2,100.00",$750.00
`

func newTestReports(t *testing.T) *services.Reports {
	t.Helper()
	r := services.NewReports(time.Hour, slog.Default())
	t.Cleanup(func() { r.Close(context.Background()) })
	return r
}

func uploadDataset(t *testing.T, h *APIHandlers, filename, content string) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.HandleUpload(w, multipartRequest(t, filename, content))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			DatasetID string `json:"dataset_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp.Data.DatasetID
}

func multipartRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAPIHandlers_HandleUpload(t *testing.T) {
	h := NewAPIHandlers(newTestReports(t), slog.Default(), 32<<20)

	w := httptest.NewRecorder()
	h.HandleUpload(w, multipartRequest(t, "financials.csv", testCSV))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			DatasetID   string   `json:"dataset_id"`
			RecordCount int      `json:"record_count"`
			SkippedRows int      `json:"skipped_rows"`
			Degraded    []string `json:"degraded"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Data.DatasetID == "" {
		t.Error("expected a dataset ID")
	}
	if resp.Data.RecordCount != 3 {
		t.Errorf("record_count = %d, want 3", resp.Data.RecordCount)
	}
	if len(resp.Data.Degraded) != 2 {
		t.Errorf("degraded = %v, want the two missing optional price columns", resp.Data.Degraded)
	}
}

func TestAPIHandlers_HandleUpload_MissingRequiredColumn(t *testing.T) {
	h := NewAPIHandlers(newTestReports(t), slog.Default(), 32<<20)

	noProfit := `Date,Segment,Country,Units Sold,Gross Sales,Discounts,Sales,COGS
01/15/2020,Government,Canada,100,1000,50,950,600
`
	w := httptest.NewRecorder()
	h.HandleUpload(w, multipartRequest(t, "broken.csv", noProfit))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error code = %q, want VALIDATION_ERROR", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "Profit") {
		t.Errorf("error message %q should name the missing column", resp.Error.Message)
	}
}

func TestAPIHandlers_HandleUpload_NoFileField(t *testing.T) {
	h := NewAPIHandlers(newTestReports(t), slog.Default(), 32<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("not multipart"))
	w := httptest.NewRecorder()
	h.HandleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPIHandlers_HandleUpload_TooLarge(t *testing.T) {
	h := NewAPIHandlers(newTestReports(t), slog.Default(), 64)

	w := httptest.NewRecorder()
	h.HandleUpload(w, multipartRequest(t, "big.csv", testCSV))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestAPIHandlers_HandleReport(t *testing.T) {
	reports := newTestReports(t)
	h := NewAPIHandlers(reports, slog.Default(), 32<<20)
	id := uploadDataset(t, h, "financials.csv", testCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/report?dataset="+id+"&year=2020", nil)
	w := httptest.NewRecorder()
	h.HandleReport(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			RecordCount int  `json:"record_count"`
			Empty       bool `json:"empty"`
			Summary     struct {
				UnitsSold int64 `json:"units_sold"`
			} `json:"summary"`
			ProfitByQuarter []struct {
				Label string `json:"label"`
			} `json:"profit_by_quarter"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.RecordCount != 2 {
		t.Errorf("record_count = %d, want 2 (2020 only)", resp.Data.RecordCount)
	}
	if resp.Data.Summary.UnitsSold != 300 {
		t.Errorf("units_sold = %d, want 300", resp.Data.Summary.UnitsSold)
	}
	if len(resp.Data.ProfitByQuarter) != 2 || resp.Data.ProfitByQuarter[0].Label != "2020 Q1" {
		t.Errorf("quarters = %v, want chronological starting 2020 Q1", resp.Data.ProfitByQuarter)
	}
}

func TestAPIHandlers_HandleReport_UnknownDataset(t *testing.T) {
	h := NewAPIHandlers(newTestReports(t), slog.Default(), 32<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/report?dataset=missing", nil)
	w := httptest.NewRecorder()
	h.HandleReport(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAPIHandlers_HandleReport_NoMatchingData(t *testing.T) {
	reports := newTestReports(t)
	h := NewAPIHandlers(reports, slog.Default(), 32<<20)
	id := uploadDataset(t, h, "financials.csv", testCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/report?dataset="+id+"&country=Atlantis", nil)
	w := httptest.NewRecorder()
	h.HandleReport(w, req)

	// Empty selection is reported, not treated as an error.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Data struct {
			Empty bool `json:"empty"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Data.Empty {
		t.Error("report should be marked empty")
	}
}

func TestAPIHandlers_HandleOptions(t *testing.T) {
	reports := newTestReports(t)
	h := NewAPIHandlers(reports, slog.Default(), 32<<20)
	id := uploadDataset(t, h, "financials.csv", testCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/options?dataset="+id, nil)
	w := httptest.NewRecorder()
	h.HandleOptions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("cache-control = %q", cc)
	}

	var resp struct {
		Data struct {
			Segments  []string `json:"segments"`
			Countries []string `json:"countries"`
			Years     []int    `json:"years"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data.Segments) != 2 {
		t.Errorf("segments = %v, want 2 distinct", resp.Data.Segments)
	}
	if len(resp.Data.Years) != 2 || resp.Data.Years[0] != 2020 {
		t.Errorf("years = %v, want ascending [2020 2021]", resp.Data.Years)
	}
}

func TestFilterFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/report?segment=Government&segment=Midmarket&country=Canada&year=2020&year=bogus&product=Carretera&band=High", nil)

	f := FilterFromQuery(req)

	if len(f.Segments) != 2 {
		t.Errorf("Segments = %v, want 2 values", f.Segments)
	}
	if len(f.Years) != 1 || f.Years[0] != 2020 {
		t.Errorf("Years = %v, want [2020] with the bogus value dropped", f.Years)
	}
	if len(f.Products) != 1 || len(f.Bands) != 1 {
		t.Errorf("Products/Bands = %v/%v, want one each", f.Products, f.Bands)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	h := NewAPIHandlers(newTestReports(t), slog.Default(), 32<<20)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Data["status"])
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	reports := newTestReports(t)
	h := NewAPIHandlers(reports, slog.Default(), 32<<20)
	uploadDataset(t, h, "financials.csv", testCSV)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()
	h.HandleStats(w, req)

	var resp struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if datasets, ok := resp.Data["datasets"].(float64); !ok || datasets != 1 {
		t.Errorf("datasets = %v, want 1", resp.Data["datasets"])
	}
}
