package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/diet-hub/internal/blob"
	"github.com/fdg312/diet-hub/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configure where reports are stored and how they are downloaded.
type Options struct {
	MaxRangeDays    int
	PresignTTL      int // seconds
	PublicBaseURL   string
	PreferPublicURL bool
}

// Service handles reports business logic
type Service struct {
	reportsStorage storage.ReportsStorage
	generator      *Generator
	blobStore      blob.Store
	opts           Options
	localMode      bool // true if no S3 configured
	logger         *zap.Logger
}

// NewService creates a new reports service. A nil blobStore keeps report bytes in the metadata store.
func NewService(
	reportsStorage storage.ReportsStorage,
	history HistorySource,
	blobStore blob.Store,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = 90
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 900
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		reportsStorage: reportsStorage,
		generator:      NewGenerator(history),
		blobStore:      blobStore,
		opts:           opts,
		localMode:      blobStore == nil,
		logger:         logger,
	}
}

// CreateReport generates and stores a ledger history report
func (s *Service) CreateReport(ctx context.Context, ownerUserID string, req CreateReportRequest) (*Report, error) {
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if req.Format != FormatPDF && req.Format != FormatCSV {
		return nil, ErrInvalidFormat
	}

	fromDate, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		return nil, ErrInvalidDate
	}

	toDate, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		return nil, ErrInvalidDate
	}

	if fromDate.After(toDate) {
		return nil, ErrInvalidDateRange
	}

	// границы включительно
	if days := int(toDate.Sub(fromDate).Hours()/24) + 1; days > s.opts.MaxRangeDays {
		return nil, ErrRangeTooLarge
	}

	data, err := s.generator.GenerateReport(ctx, ownerUserID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}

	report := &storage.ReportMeta{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		Format:      req.Format,
		FromDate:    req.From,
		ToDate:      req.To,
		SizeBytes:   int64(len(data)),
		Status:      StatusReady,
	}

	if s.localMode {
		report.Data = data
	} else {
		objectKey := fmt.Sprintf("reports/%s/%s_%s_%s.%s",
			ownerUserID,
			req.From,
			req.To,
			report.ID.String(),
			req.Format,
		)

		if _, err := s.blobStore.PutObject(ctx, objectKey, data, contentTypeFor(req.Format)); err != nil {
			return nil, fmt.Errorf("failed to upload to S3: %w", err)
		}

		report.ObjectKey = &objectKey
	}

	if err := s.reportsStorage.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report metadata: %w", err)
	}

	s.logger.Info("report created",
		zap.String("owner", ownerUserID),
		zap.String("report_id", report.ID.String()),
		zap.String("format", report.Format),
		zap.Int64("size_bytes", report.SizeBytes),
	)

	return toReport(report), nil
}

// GetReport retrieves a report owned by ownerUserID
func (s *Service) GetReport(ctx context.Context, ownerUserID string, id uuid.UUID) (*Report, error) {
	meta, err := s.getOwned(ctx, ownerUserID, id)
	if err != nil {
		return nil, err
	}
	return toReport(meta), nil
}

// ListReports lists reports of the owner, newest first
func (s *Service) ListReports(ctx context.Context, ownerUserID string, limit, offset int) ([]Report, error) {
	metaList, err := s.reportsStorage.ListReports(ctx, ownerUserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]Report, len(metaList))
	for i := range metaList {
		reports[i] = *toReport(&metaList[i])
	}

	return reports, nil
}

// DeleteReport deletes a report and its stored object
func (s *Service) DeleteReport(ctx context.Context, ownerUserID string, id uuid.UUID) error {
	meta, err := s.getOwned(ctx, ownerUserID, id)
	if err != nil {
		return err
	}

	if !s.localMode && meta.ObjectKey != nil {
		if err := s.blobStore.DeleteObject(ctx, *meta.ObjectKey); err != nil {
			// метаданные всё равно удаляем
			s.logger.Warn("failed to delete S3 object", zap.String("key", *meta.ObjectKey), zap.Error(err))
		}
	}

	if err := s.reportsStorage.DeleteReport(ctx, ownerUserID, id); err != nil {
		return fmt.Errorf("failed to delete report metadata: %w", err)
	}

	return nil
}

// DownloadURL returns a link for the report: the local download endpoint,
// a public bucket URL or a presigned URL.
func (s *Service) DownloadURL(ctx context.Context, report *Report, baseURL string) (string, error) {
	if s.localMode {
		return fmt.Sprintf("%s/v1/reports/%s/download", strings.TrimSuffix(baseURL, "/"), report.ID.String()), nil
	}

	if report.ObjectKey == nil {
		return "", fmt.Errorf("object key is missing")
	}

	if s.opts.PreferPublicURL && s.opts.PublicBaseURL != "" {
		return strings.TrimSuffix(s.opts.PublicBaseURL, "/") + "/" + *report.ObjectKey, nil
	}

	presignedURL, err := s.blobStore.PresignGet(ctx, *report.ObjectKey, s.opts.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedURL, nil
}

// ReportData returns the report bytes, reading from S3 when needed.
func (s *Service) ReportData(ctx context.Context, report *Report) ([]byte, string, error) {
	contentType := contentTypeFor(report.Format)

	if s.localMode {
		return report.Data, contentType, nil
	}

	if report.ObjectKey == nil {
		return nil, "", fmt.Errorf("object key is missing")
	}

	data, err := s.blobStore.GetObject(ctx, *report.ObjectKey)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func (s *Service) getOwned(ctx context.Context, ownerUserID string, id uuid.UUID) (*storage.ReportMeta, error) {
	meta, err := s.reportsStorage.GetReport(ctx, ownerUserID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return meta, nil
}

func toReport(meta *storage.ReportMeta) *Report {
	return &Report{
		ID:          meta.ID,
		OwnerUserID: meta.OwnerUserID,
		Format:      meta.Format,
		FromDate:    meta.FromDate,
		ToDate:      meta.ToDate,
		ObjectKey:   meta.ObjectKey,
		SizeBytes:   meta.SizeBytes,
		Status:      meta.Status,
		Error:       meta.Error,
		CreatedAt:   meta.CreatedAt,
		UpdatedAt:   meta.UpdatedAt,
		Data:        meta.Data,
	}
}
