package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/utafrali/ReviewGo/internal/domain"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

func exportReviews() []domain.Review {
	a := sampleReview(domain.ReviewApproved)
	a.HelpfulCount = 2
	a.Replies = []domain.Reply{{ID: "rep-1", ReviewID: a.ID, CompanyID: companyID, UserID: ownerID, Text: "Thanks", CreatedAt: fixedNow}}

	b := sampleReview(domain.ReviewPending)
	b.ID = "rev-2"
	b.Rating = 2
	b.Text = "Cold bread, \"stale\" pastries, slow service"
	b.CreatedAt = time.Date(2026, 3, 9, 8, 30, 15, 0, time.UTC)
	return []domain.Review{*a, *b}
}

func newTestExportService(t *testing.T) (*ExportService, *mockReviewRepository, *mockCompanyRepository) {
	t.Helper()
	reviews := new(mockReviewRepository)
	companies := new(mockCompanyRepository)
	t.Cleanup(func() {
		reviews.AssertExpectations(t)
		companies.AssertExpectations(t)
	})
	return NewExportService(reviews, companies, newTestLogger()), reviews, companies
}

func TestExportReviews_CSV(t *testing.T) {
	svc, reviews, companies := newTestExportService(t)
	companies.On("GetByID", mock.Anything, companyID).Return(activeCompany(), nil)
	reviews.On("ListByCompany", mock.Anything, companyID).Return(exportReviews(), nil)

	out, err := svc.ExportReviews(context.Background(), owner, companyID, FormatCSV)

	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", out.ContentType)
	assert.Equal(t, "reviews-"+companyID+".csv", out.Filename)
	assert.Equal(t, 2, out.Count)

	records, err := csv.NewReader(bytes.NewReader(out.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, "rev-1", records[1][0])
	assert.Equal(t, "1", records[1][8])
	assert.Equal(t, "Cold bread, \"stale\" pastries, slow service", records[2][4])
	assert.Equal(t, "2026-03-09T08:30:15Z", records[2][9])
}

func TestExportReviews_JSONRoundTrip(t *testing.T) {
	svc, reviews, companies := newTestExportService(t)
	source := exportReviews()
	companies.On("GetByID", mock.Anything, companyID).Return(activeCompany(), nil)
	reviews.On("ListByCompany", mock.Anything, companyID).Return(source, nil)

	out, err := svc.ExportReviews(context.Background(), admin, companyID, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", out.ContentType)
	assert.Equal(t, "reviews-"+companyID+".json", out.Filename)

	var parsed []domain.Review
	require.NoError(t, json.Unmarshal(out.Body, &parsed))
	require.Len(t, parsed, len(source))
	for i := range source {
		assert.Equal(t, source[i].ID, parsed[i].ID)
		assert.Equal(t, source[i].Rating, parsed[i].Rating)
		assert.Equal(t, source[i].Text, parsed[i].Text)
		assert.Equal(t, source[i].Status, parsed[i].Status)
		assert.True(t, source[i].CreatedAt.Equal(parsed[i].CreatedAt))
		assert.True(t, source[i].UpdatedAt.Equal(parsed[i].UpdatedAt))
		assert.Len(t, parsed[i].Replies, len(source[i].Replies))
	}

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(out.Body, &raw))
	assert.NotContains(t, raw[0], "ip_address")
}

func TestExportReviews_XLSX(t *testing.T) {
	svc, reviews, companies := newTestExportService(t)
	companies.On("GetByID", mock.Anything, companyID).Return(activeCompany(), nil)
	reviews.On("ListByCompany", mock.Anything, companyID).Return(exportReviews(), nil)

	out, err := svc.ExportReviews(context.Background(), owner, companyID, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "reviews-"+companyID+".xlsx", out.Filename)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", out.ContentType)

	f, err := excelize.OpenReader(bytes.NewReader(out.Body))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "rev-2", rows[2][0])
	assert.Equal(t, "2", rows[2][3])
}

func TestExportReviews_Forbidden(t *testing.T) {
	svc, reviews, companies := newTestExportService(t)
	companies.On("GetByID", mock.Anything, companyID).Return(activeCompany(), nil)

	_, err := svc.ExportReviews(context.Background(), reader, companyID, FormatCSV)

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	reviews.AssertNotCalled(t, "ListByCompany", mock.Anything, mock.Anything)
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseExportFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseExportFormat("pdf")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
