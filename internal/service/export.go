package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/repository"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

// ExportFormat is a supported review export encoding.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatXLSX ExportFormat = "xlsx"
)

var exportContentTypes = map[ExportFormat]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatJSON: "application/json",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ParseExportFormat converts s into an ExportFormat. An empty string means CSV.
func ParseExportFormat(s string) (ExportFormat, error) {
	if s == "" {
		return FormatCSV, nil
	}
	f := ExportFormat(s)
	if _, ok := exportContentTypes[f]; !ok {
		return "", apperrors.Validation(fmt.Sprintf("format must be one of csv, json, xlsx; got %q", s))
	}
	return f, nil
}

// Export is an encoded review export ready to be sent as an attachment.
type Export struct {
	ContentType string
	Filename    string
	Body        []byte
	Count       int
}

const exportSheet = "Reviews"

var exportHeader = []string{
	"id", "company_id", "user_id", "rating", "text", "status",
	"report_count", "helpful_count", "reply_count", "created_at", "updated_at",
}

// ExportService encodes all reviews of a company for download.
type ExportService struct {
	reviews   repository.ReviewRepository
	companies repository.CompanyRepository
	logger    *slog.Logger
}

// NewExportService creates a new export service.
func NewExportService(reviews repository.ReviewRepository, companies repository.CompanyRepository, logger *slog.Logger) *ExportService {
	return &ExportService{reviews: reviews, companies: companies, logger: logger}
}

// ExportReviews encodes every review of a company in format. Only the
// company owner or an admin may export.
func (s *ExportService) ExportReviews(ctx context.Context, actor Actor, companyID string, format ExportFormat) (*Export, error) {
	if _, err := requireCompanyAccess(ctx, s.companies, actor, companyID); err != nil {
		return nil, fmt.Errorf("export reviews: %w", err)
	}

	reviews, err := s.reviews.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("export reviews: %w", err)
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}

	var body []byte
	switch format {
	case FormatCSV:
		body, err = encodeCSV(reviews)
	case FormatJSON:
		body, err = json.MarshalIndent(reviews, "", "  ")
	case FormatXLSX:
		body, err = encodeXLSX(reviews)
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s export: %w", format, err)
	}

	exportsTotal.WithLabelValues(string(format)).Inc()
	s.logger.InfoContext(ctx, "reviews exported",
		slog.String("company_id", companyID),
		slog.String("format", string(format)),
		slog.Int("count", len(reviews)),
		slog.String("requested_by", actor.UserID),
	)

	return &Export{
		ContentType: exportContentTypes[format],
		Filename:    ExportFilename(companyID, format),
		Body:        body,
		Count:       len(reviews),
	}, nil
}

// ExportFilename returns reviews-<companyID>.<ext>.
func ExportFilename(companyID string, format ExportFormat) string {
	return fmt.Sprintf("reviews-%s.%s", companyID, format)
}

func exportRow(rv *domain.Review) []string {
	return []string{
		rv.ID,
		rv.CompanyID,
		rv.UserID,
		strconv.Itoa(rv.Rating),
		rv.Text,
		string(rv.Status),
		strconv.Itoa(rv.ReportCount),
		strconv.Itoa(rv.HelpfulCount),
		strconv.Itoa(len(rv.Replies)),
		rv.CreatedAt.UTC().Format(time.RFC3339),
		rv.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func encodeCSV(reviews []domain.Review) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for i := range reviews {
		if err := w.Write(exportRow(&reviews[i])); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeXLSX(reviews []domain.Review) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, err
	}

	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i := range reviews {
		rv := &reviews[i]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			rv.ID,
			rv.CompanyID,
			rv.UserID,
			rv.Rating,
			rv.Text,
			string(rv.Status),
			rv.ReportCount,
			rv.HelpfulCount,
			len(rv.Replies),
			rv.CreatedAt.UTC().Format(time.RFC3339),
			rv.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(exportSheet, "E", "E", 60); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
