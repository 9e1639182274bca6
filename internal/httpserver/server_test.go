package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fdg312/diet-hub/internal/config"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	srv, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status=ok, got %s", resp["status"])
	}
}

func TestHealthzMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080})

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestLedgerRoundTripThroughRouter(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080})
	handler := srv.Handler()

	body := `{"date":"2025-03-10","tz":"UTC","entry":{"name":"Овсянка","amount":"80 г","time":"08:15","macros":{"calories":300,"protein":"10","carbs":54,"fat":6}}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ledger/entries", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/ledger/day?date=2025-03-10&tz=UTC", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	var view struct {
		Exists  bool `json:"exists"`
		Entries []struct {
			Name string `json:"name"`
		} `json:"entries"`
		Totals struct {
			Calories float64 `json:"calories"`
			Protein  float64 `json:"protein"`
		} `json:"totals"`
	}
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode day: %v", err)
	}
	if !view.Exists || len(view.Entries) != 1 || view.Entries[0].Name != "Овсянка" {
		t.Fatalf("unexpected day view: %+v", view)
	}
	if view.Totals.Calories != 300 || view.Totals.Protein != 10 {
		t.Fatalf("unexpected totals: %+v", view.Totals)
	}
}

func TestGoalsDefaultsThroughRouter(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080})

	req := httptest.NewRequest(http.MethodGet, "/v1/goals", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"is_default":true`) {
		t.Fatalf("expected default goals, got %s", w.Body.String())
	}
}

func TestAuthRequiredBlocksAnonymousRequests(t *testing.T) {
	cfg := &config.Config{
		Port:          8080,
		AuthMode:      "dev",
		AuthRequired:  true,
		JWTSecret:     "test-secret",
		JWTIssuer:     "diet-hub",
		JWTTTLMinutes: 60,
	}
	srv := newTestServer(t, cfg)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/ledger/day", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/auth/dev", strings.NewReader(`{"user_id":"alice"}`))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected dev auth 200, got %d body=%s", w.Code, w.Body.String())
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&token); err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/ledger/day", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 with token, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestNewFailsOnForcedS3WithoutConfig(t *testing.T) {
	cfg := &config.Config{
		Port: 8080,
		Blob: config.BlobConfig{Mode: config.BlobModeS3},
	}

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected error when BLOB_MODE=s3 has no S3 config")
	}
}
