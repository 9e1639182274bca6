package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fdg312/diet-hub/internal/ai"
	"github.com/fdg312/diet-hub/internal/auth"
	"github.com/fdg312/diet-hub/internal/blob"
	"github.com/fdg312/diet-hub/internal/chat"
	"github.com/fdg312/diet-hub/internal/config"
	"github.com/fdg312/diet-hub/internal/goals"
	"github.com/fdg312/diet-hub/internal/ledger"
	"github.com/fdg312/diet-hub/internal/reports"
	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/fdg312/diet-hub/internal/storage/memory"
	"github.com/fdg312/diet-hub/internal/storage/postgres"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Server представляет HTTP сервер
type Server struct {
	config         *config.Config
	logger         *zap.Logger
	mux            *http.ServeMux
	storage        storage.Storage
	authMiddleware *auth.Middleware
	httpServer     *http.Server
}

// New создаёт новый HTTP сервер
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: cfg,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	// Инициализируем storage
	s.initStorage()

	// Регистрируем маршруты
	if err := s.routes(); err != nil {
		return nil, multierr.Append(err, s.storage.Close())
	}
	return s, nil
}

// initStorage инициализирует storage (Memory или Postgres)
func (s *Server) initStorage() {
	if s.config.DatabaseURL == "" {
		s.logger.Info("using in-memory storage")
		s.storage = memory.New()
		return
	}

	s.logger.Info("connecting to postgres")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pgStorage, err := postgres.New(ctx, s.config.DatabaseURL)
	if err != nil {
		s.logger.Warn("postgres connection failed, falling back to in-memory storage", zap.Error(err))
		s.storage = memory.New()
		return
	}

	s.logger.Info("postgres connected")
	s.storage = pgStorage
}

// routes собирает сервисы и регистрирует маршруты
func (s *Server) routes() error {
	ctx := context.Background()

	// Health check (no auth required)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Auth API (no auth required)
	authService := auth.NewService(s.config)
	authHandler := auth.NewHandlers(authService)
	s.authMiddleware = auth.NewMiddleware(s.config, authService, s.logger)

	// POST /v1/auth/dev - local dev token
	s.mux.HandleFunc("POST /v1/auth/dev", authHandler.HandleDevAuth)

	provider, err := ai.NewProvider(ctx, s.config)
	if err != nil {
		s.logger.Warn("ai provider init failed, using mock", zap.String("mode", s.config.AIMode), zap.Error(err))
		provider = ai.NewMockProvider()
	}

	profiles := s.storage.GetProfilesStorage()

	// Goals API
	goalsService := goals.NewService(profiles, provider, s.config.GoalsFatPerKg, s.logger.Named("goals"))
	goalsHandler := goals.NewHandler(goalsService)

	s.mux.HandleFunc("GET /v1/goals", goalsHandler.HandleGetGoals)
	s.mux.HandleFunc("PUT /v1/goals", goalsHandler.HandleUpsertGoals)
	s.mux.HandleFunc("POST /v1/goals/basal", goalsHandler.HandleEstimateBasal)
	s.mux.HandleFunc("POST /v1/goals/preview", goalsHandler.HandlePreview)

	// Ledger API
	ledgerService := ledger.NewService(s.storage.GetLedgerStorage(), profiles, provider, ledger.Options{
		WriteMode:      s.config.LedgerWriteMode,
		RemoveMismatch: s.config.LedgerRemoveMismatch,
		MaxRetries:     s.config.LedgerMaxRetries,
		MaxRangeDays:   s.config.ReportsMaxRangeDays,
	}, s.logger.Named("ledger"))
	ledgerHandler := ledger.NewHandler(ledgerService)

	s.mux.HandleFunc("GET /v1/ledger/day", ledgerHandler.HandleGetDay)
	s.mux.HandleFunc("POST /v1/ledger/entries", ledgerHandler.HandleAddEntry)
	s.mux.HandleFunc("PUT /v1/ledger/entries/{id}", ledgerHandler.HandleReplaceEntry)
	s.mux.HandleFunc("DELETE /v1/ledger/entries/{id}", ledgerHandler.HandleRemoveEntry)
	s.mux.HandleFunc("GET /v1/ledger/history", ledgerHandler.HandleHistory)
	s.mux.HandleFunc("POST /v1/ledger/analyze", ledgerHandler.HandleAnalyze)

	// Chat API
	chatService := chat.NewService(s.storage.GetChatStorage(), profiles, ledgerService, provider, s.config.ChatHistoryLimit, s.logger.Named("chat"))
	chatHandler := chat.NewHandler(chatService)

	s.mux.HandleFunc("GET /v1/chat/messages", chatHandler.HandleListMessages)
	s.mux.HandleFunc("POST /v1/chat/messages", chatHandler.HandleSendMessage)

	// Reports API
	reportsBlob, _, err := blob.NewBlobStore(ctx, s.config.Blob, s.logger)
	if err != nil {
		return fmt.Errorf("init reports blob store: %w", err)
	}
	reportsService := reports.NewService(s.storage.GetReportsStorage(), ledgerService, reportsBlob, reports.Options{
		MaxRangeDays:    s.config.ReportsMaxRangeDays,
		PresignTTL:      s.config.Blob.S3.PresignTTLSeconds,
		PublicBaseURL:   s.config.Blob.S3.PublicBaseURL,
		PreferPublicURL: s.config.Blob.S3.PreferPublicURL,
	}, s.logger.Named("reports"))
	reportsHandler := reports.NewHandlers(reportsService)

	s.mux.HandleFunc("POST /v1/reports", reportsHandler.HandleCreate)
	s.mux.HandleFunc("GET /v1/reports", reportsHandler.HandleList)
	s.mux.HandleFunc("GET /v1/reports/{id}/download", reportsHandler.HandleDownload)
	s.mux.HandleFunc("DELETE /v1/reports/{id}", reportsHandler.HandleDelete)

	return nil
}

// handleHealthz возвращает статус сервера
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	// Build middleware chain (outermost first): CORS → Rate Limit → Auth → Router
	var handler http.Handler = s.mux
	if s.authMiddleware != nil && s.config.AuthMode != "none" {
		if s.config.AuthRequired {
			handler = s.authMiddleware.RequireAuth(handler)
		} else {
			handler = s.authMiddleware.OptionalAuth(handler)
		}
	}
	handler = RateLimitMiddleware(s.config, handler)
	handler = CORSMiddleware(s.config, handler)
	return handler
}

// Start запускает HTTP сервер и блокируется до Shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server started",
		zap.String("addr", "http://localhost"+addr),
		zap.String("healthz", "http://localhost"+addr+"/healthz"),
		zap.String("ledger", "http://localhost"+addr+"/v1/ledger/day"),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает HTTP сервер и закрывает storage
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = multierr.Append(err, s.httpServer.Shutdown(ctx))
	}
	return multierr.Append(err, s.Close())
}

// Close закрывает storage и освобождает ресурсы
func (s *Server) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
