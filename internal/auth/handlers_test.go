package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fdg312/diet-hub/internal/config"
	"github.com/fdg312/diet-hub/internal/userctx"
	"github.com/golang-jwt/jwt/v5"
)

func setupTestService(authMode string, authRequired bool) *Service {
	cfg := &config.Config{
		AuthMode:      authMode,
		AuthRequired:  authRequired,
		JWTSecret:     "test-secret-key-for-testing-only",
		JWTIssuer:     "diet-hub-test",
		JWTTTLMinutes: 60,
	}
	return NewService(cfg)
}

func TestHandleDevAuth(t *testing.T) {
	service := setupTestService("dev", true)
	handler := NewHandlers(service)

	t.Run("DefaultUser", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/dev", nil)
		w := httptest.NewRecorder()

		handler.HandleDevAuth(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
		}

		var resp DevAuthResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.AccessToken == "" {
			t.Fatal("expected access_token not empty")
		}
		if resp.UserID != "dev-user" {
			t.Fatalf("expected dev-user, got %q", resp.UserID)
		}
		if resp.TokenType != "Bearer" {
			t.Fatalf("expected Bearer token type, got %q", resp.TokenType)
		}

		sub, err := service.VerifyJWT(resp.AccessToken)
		if err != nil {
			t.Fatalf("token should verify: %v", err)
		}
		if sub != "dev-user" {
			t.Fatalf("expected sub dev-user, got %q", sub)
		}
	})

	t.Run("ExplicitUser", func(t *testing.T) {
		body, _ := json.Marshal(DevAuthRequest{UserID: "userA"})
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/dev", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleDevAuth(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
		}
		var resp DevAuthResponse
		_ = json.NewDecoder(w.Body).Decode(&resp)
		if resp.UserID != "userA" {
			t.Fatalf("expected userA, got %q", resp.UserID)
		}
	})

	t.Run("InvalidUser", func(t *testing.T) {
		body, _ := json.Marshal(DevAuthRequest{UserID: "bad user/with spaces"})
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/dev", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleDevAuth(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}
	})
}

func TestHandleDevAuth_DisabledWhenAuthNone(t *testing.T) {
	handler := NewHandlers(setupTestService("none", false))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/dev", nil)
	w := httptest.NewRecorder()
	handler.HandleDevAuth(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestVerifyJWT_RejectsForeignTokens(t *testing.T) {
	service := setupTestService("dev", true)

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewService(&config.Config{AuthMode: "dev", JWTSecret: "other", JWTIssuer: "diet-hub-test", JWTTTLMinutes: 60})
		token, err := other.GenerateJWT("userA")
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if _, err := service.VerifyJWT(token); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		other := NewService(&config.Config{AuthMode: "dev", JWTSecret: "test-secret-key-for-testing-only", JWTIssuer: "someone-else", JWTTTLMinutes: 60})
		token, _ := other.GenerateJWT("userA")
		if _, err := service.VerifyJWT(token); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		expired := setupTestService("dev", true)
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _ := expired.GenerateJWT("userA")
		if _, err := service.VerifyJWT(token); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "userA",
			"iss": "diet-hub-test",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if _, err := service.VerifyJWT(signed); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestMiddleware_RequireAuth(t *testing.T) {
	service := setupTestService("dev", true)
	mw := NewMiddleware(service.config, service, nil)

	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = userctx.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := mw.RequireAuth(next)

	t.Run("MissingToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/ledger/day", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `"unauthorized"`) {
			t.Fatalf("unexpected body %s", w.Body.String())
		}
	})

	t.Run("PublicPath", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("ValidToken", func(t *testing.T) {
		token, _ := service.GenerateJWT("userB")
		req := httptest.NewRequest(http.MethodGet, "/v1/ledger/day", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
		}
		if gotUser != "userB" {
			t.Fatalf("expected userB in context, got %q", gotUser)
		}
	})
}

func TestMiddleware_OptionalAuth(t *testing.T) {
	service := setupTestService("dev", false)
	mw := NewMiddleware(service.config, service, nil)

	handler := mw.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/goals", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through without token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/goals", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for bad token, got %d", w.Code)
	}
}
