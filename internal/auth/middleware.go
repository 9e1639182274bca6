package auth

import (
	"net/http"
	"strings"

	"github.com/fdg312/diet-hub/internal/config"
	"github.com/fdg312/diet-hub/internal/userctx"
	"go.uber.org/zap"
)

// Middleware кладёт владельца из Bearer-токена в контекст запроса (userctx).
type Middleware struct {
	config  *config.Config
	service *Service
	logger  *zap.Logger
}

func NewMiddleware(cfg *config.Config, service *Service, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		config:  cfg,
		service: service,
		logger:  logger.Named("auth"),
	}
}

// RequireAuth отклоняет запросы без валидного токена (кроме публичных путей).
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return m.wrap(next, true)
}

// OptionalAuth проверяет токен только если он передан; анонимные запросы
// идут дальше и попадают к владельцу userctx.DefaultUserID.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return m.wrap(next, false)
}

func (m *Middleware) wrap(next http.Handler, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, present := bearerToken(r.Header.Get("Authorization"))
		if !present {
			if required && m.config.AuthRequired {
				writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.service.VerifyJWT(token)
		if err != nil {
			m.logger.Debug("token rejected", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
			writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		m.logger.Debug("token accepted", zap.String("sub", userID), zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(userctx.WithUserID(r.Context(), userID)))
	})
}

// bearerToken returns the token and whether an Authorization header was sent at all.
// A malformed header counts as present with an empty token.
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

func isPublicPath(path string) bool {
	return path == "/healthz" || strings.HasPrefix(path, "/v1/auth/")
}
