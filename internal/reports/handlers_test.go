package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fdg312/diet-hub/internal/ai"
	"github.com/fdg312/diet-hub/internal/blob"
	"github.com/fdg312/diet-hub/internal/ledger"
	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/fdg312/diet-hub/internal/storage/memory"
	"github.com/fdg312/diet-hub/internal/userctx"
	"github.com/google/uuid"
)

type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) PutObject(ctx context.Context, key string, data []byte, contentType string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return int64(len(data)), nil
}

func (f *fakeBlobStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key")
	}
	return data, nil
}

func (f *fakeBlobStore) PresignGet(ctx context.Context, key string, ttlSeconds int) (string, error) {
	return fmt.Sprintf("https://s3.example.test/bucket/%s?ttl=%d", key, ttlSeconds), nil
}

func (f *fakeBlobStore) DeleteObject(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func setupTestService(t *testing.T, store *fakeBlobStore) *Service {
	t.Helper()

	mem := memory.New()
	ctx := context.Background()

	days := []storage.DayDocument{
		{
			OwnerUserID: "default",
			Date:        "2026-02-03",
			Entries:     []storage.MealEntry{{ID: "a", Name: "Каша", Time: "08:00", Macros: storage.Macros{Calories: 1500, Protein: 100, Carbs: 150, Fat: 50}}},
			Totals:      storage.Macros{Calories: 1500, Protein: 100, Carbs: 150, Fat: 50},
		},
		{
			OwnerUserID: "default",
			Date:        "2026-02-10",
			Entries: []storage.MealEntry{
				{ID: "b", Name: "Рис", Time: "13:00", Macros: storage.Macros{Calories: 1200, Protein: 60, Carbs: 200, Fat: 20}},
				{ID: "c", Name: "Суп", Time: "19:00", Macros: storage.Macros{Calories: 1300, Protein: 70, Carbs: 100, Fat: 40}},
			},
			Totals: storage.Macros{Calories: 2500, Protein: 130, Carbs: 300, Fat: 60},
		},
	}
	for _, day := range days {
		if err := mem.GetLedgerStorage().SetDay(ctx, day); err != nil {
			t.Fatalf("seed ledger day: %v", err)
		}
	}

	ledgerService := ledger.NewService(mem.GetLedgerStorage(), mem.GetProfilesStorage(), ai.NewMockProvider(), ledger.Options{MaxRangeDays: 90}, nil)

	var blobStore blob.Store
	if store != nil {
		blobStore = store
	}

	return NewService(mem.GetReportsStorage(), ledgerService, blobStore, Options{MaxRangeDays: 90, PresignTTL: 900}, nil)
}

func createReq(t *testing.T, body CreateReportRequest) *http.Request {
	t.Helper()
	data, _ := json.Marshal(body)
	return httptest.NewRequest(http.MethodPost, "/v1/reports", bytes.NewReader(data))
}

func TestHandleCreate_CSV_Success(t *testing.T) {
	service := setupTestService(t, nil)
	handler := NewHandlers(service)

	w := httptest.NewRecorder()
	handler.HandleCreate(w, createReq(t, CreateReportRequest{From: "2026-02-01", To: "2026-02-15", Format: FormatCSV}))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", w.Code, w.Body.String())
	}

	var resp ReportDTO
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Format != FormatCSV {
		t.Errorf("expected format csv, got %s", resp.Format)
	}
	if !strings.HasSuffix(resp.DownloadURL, "/v1/reports/"+resp.ID.String()+"/download") {
		t.Errorf("unexpected download URL %q", resp.DownloadURL)
	}
}

func TestGenerateCSV_Content(t *testing.T) {
	service := setupTestService(t, nil)

	report, err := service.CreateReport(context.Background(), "default", CreateReportRequest{From: "2026-02-01", To: "2026-02-15", Format: FormatCSV})
	if err != nil {
		t.Fatalf("failed to create report: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(report.Data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "date" || rows[0][1] != "calories" {
		t.Errorf("unexpected header %v", rows[0])
	}
	want := []string{"2026-02-10", "2500.0", "130.0", "300.0", "60.0", "2", "100"}
	if strings.Join(rows[2], ",") != strings.Join(want, ",") {
		t.Errorf("expected row %v, got %v", want, rows[2])
	}
	// default goal is 2000 kcal
	if rows[1][6] != "75" {
		t.Errorf("expected 75%% of goal, got %s", rows[1][6])
	}
}

func TestHandleCreate_PDF_Success(t *testing.T) {
	service := setupTestService(t, nil)
	handler := NewHandlers(service)

	w := httptest.NewRecorder()
	handler.HandleCreate(w, createReq(t, CreateReportRequest{From: "2026-02-01", To: "2026-02-15", Format: "PDF"}))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", w.Code, w.Body.String())
	}

	var resp ReportDTO
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Format != FormatPDF {
		t.Errorf("expected format pdf, got %s", resp.Format)
	}

	report, err := service.GetReport(context.Background(), "default", resp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(report.Data, []byte("%PDF")) {
		t.Errorf("expected PDF data")
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	service := setupTestService(t, nil)
	handler := NewHandlers(service)

	tests := []struct {
		name     string
		req      CreateReportRequest
		wantCode string
	}{
		{"too large", CreateReportRequest{From: "2026-01-01", To: "2026-06-01", Format: FormatCSV}, "range_too_large"},
		{"bad format", CreateReportRequest{From: "2026-02-01", To: "2026-02-02", Format: "xlsx"}, "invalid_format"},
		{"bad date", CreateReportRequest{From: "01.02.2026", To: "2026-02-02", Format: FormatCSV}, "invalid_date"},
		{"reversed", CreateReportRequest{From: "2026-02-10", To: "2026-02-01", Format: FormatCSV}, "invalid_range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.HandleCreate(w, createReq(t, tt.req))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
				t.Fatal(err)
			}
			if errResp.Error.Code != tt.wantCode {
				t.Errorf("expected error code %s, got %s", tt.wantCode, errResp.Error.Code)
			}
		})
	}
}

func TestHandleList(t *testing.T) {
	service := setupTestService(t, nil)
	handler := NewHandlers(service)

	if _, err := service.CreateReport(context.Background(), "default", CreateReportRequest{From: "2026-02-01", To: "2026-02-15", Format: FormatCSV}); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/v1/reports", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp ReportsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Reports) != 1 {
		t.Errorf("expected 1 report, got %d", len(resp.Reports))
	}

	// другой пользователь не видит отчёт
	req := httptest.NewRequest(http.MethodGet, "/v1/reports", nil)
	req = req.WithContext(userctx.WithUserID(context.Background(), "userB"))
	w = httptest.NewRecorder()
	handler.HandleList(w, req)

	resp = ReportsResponse{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Reports) != 0 {
		t.Errorf("expected 0 reports for userB, got %d", len(resp.Reports))
	}
}

func TestHandleDownload_LocalMode(t *testing.T) {
	service := setupTestService(t, nil)
	handler := NewHandlers(service)

	report, err := service.CreateReport(context.Background(), "default", CreateReportRequest{From: "2026-02-01", To: "2026-02-15", Format: FormatCSV})
	if err != nil {
		t.Fatalf("failed to create report: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/reports/%s/download", report.ID.String()), nil)
	req.SetPathValue("id", report.ID.String())
	w := httptest.NewRecorder()
	handler.HandleDownload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "text/csv" {
		t.Errorf("expected content type text/csv, got %s", w.Header().Get("Content-Type"))
	}
	if w.Body.Len() == 0 {
		t.Error("expected non-empty response body")
	}
}

func TestS3Mode_UploadRedirectAndDelete(t *testing.T) {
	store := newFakeBlobStore()
	service := setupTestService(t, store)
	handler := NewHandlers(service)

	report, err := service.CreateReport(context.Background(), "default", CreateReportRequest{From: "2026-02-01", To: "2026-02-15", Format: FormatCSV})
	if err != nil {
		t.Fatalf("failed to create report: %v", err)
	}
	if report.ObjectKey == nil || !strings.HasPrefix(*report.ObjectKey, "reports/default/2026-02-01_2026-02-15_") {
		t.Fatalf("unexpected object key %v", report.ObjectKey)
	}
	if len(report.Data) != 0 {
		t.Error("report bytes should live in the blob store")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/"+report.ID.String()+"/download", nil)
	req.SetPathValue("id", report.ID.String())
	w := httptest.NewRecorder()
	handler.HandleDownload(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Location"), *report.ObjectKey) {
		t.Errorf("redirect does not point at the object: %s", w.Header().Get("Location"))
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/reports/"+report.ID.String()+"/download?proxy=1", nil)
	req.SetPathValue("id", report.ID.String())
	w = httptest.NewRecorder()
	handler.HandleDownload(w, req)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("expected proxied body, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/reports/"+report.ID.String(), nil)
	req.SetPathValue("id", report.ID.String())
	w = httptest.NewRecorder()
	handler.HandleDelete(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if len(store.objects) != 0 {
		t.Errorf("expected S3 object to be deleted")
	}
}

func TestHandleDelete(t *testing.T) {
	service := setupTestService(t, nil)
	handler := NewHandlers(service)

	report, err := service.CreateReport(context.Background(), "default", CreateReportRequest{From: "2026-02-01", To: "2026-02-15", Format: FormatCSV})
	if err != nil {
		t.Fatalf("failed to create report: %v", err)
	}

	// чужой пользователь получает 404
	req := httptest.NewRequest(http.MethodDelete, "/v1/reports/"+report.ID.String(), nil)
	req = req.WithContext(userctx.WithUserID(context.Background(), "userB"))
	req.SetPathValue("id", report.ID.String())
	w := httptest.NewRecorder()
	handler.HandleDelete(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for foreign report, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/reports/"+report.ID.String(), nil)
	req.SetPathValue("id", report.ID.String())
	w = httptest.NewRecorder()
	handler.HandleDelete(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}

	if _, err := service.GetReport(context.Background(), "default", report.ID); err == nil {
		t.Error("expected report to be deleted")
	}
}

func TestHandleDelete_NotFound(t *testing.T) {
	service := setupTestService(t, nil)
	handler := NewHandlers(service)

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodDelete, "/v1/reports/"+id, nil)
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	handler.HandleDelete(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}
