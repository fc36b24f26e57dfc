package domain

import (
	"fmt"
	"math"
	"strconv"
	"time"

	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

// TimeRange selects the analytics window.
type TimeRange string

const (
	RangeDay   TimeRange = "day"
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeYear  TimeRange = "year"
)

var rangeDays = map[TimeRange]int{
	RangeDay:   1,
	RangeWeek:  7,
	RangeMonth: 30,
	RangeYear:  365,
}

// ParseTimeRange converts s into a TimeRange. An empty string means month.
func ParseTimeRange(s string) (TimeRange, error) {
	if s == "" {
		return RangeMonth, nil
	}
	tr := TimeRange(s)
	if _, ok := rangeDays[tr]; !ok {
		return "", apperrors.Validation(fmt.Sprintf("range must be one of day, week, month, year; got %q", s))
	}
	return tr, nil
}

// Since returns the start of the window ending at now.
func (r TimeRange) Since(now time.Time) time.Time {
	return now.AddDate(0, 0, -rangeDays[r])
}

// RatingPoint is one review reduced to what analytics needs.
type RatingPoint struct {
	Rating    int
	CreatedAt time.Time
}

// Sentiment splits reviews by rating: 4-5 positive, 3 neutral, 1-2 negative.
type Sentiment struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// TrendPoint is the activity of one UTC day.
type TrendPoint struct {
	Date    string  `json:"date"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Analytics summarises a company's reviews within a window.
type Analytics struct {
	CompanyID     string         `json:"company_id"`
	Range         TimeRange      `json:"range"`
	From          time.Time      `json:"from"`
	To            time.Time      `json:"to"`
	TotalReviews  int            `json:"total_reviews"`
	AverageRating float64        `json:"average_rating"`
	Distribution  map[string]int `json:"distribution"`
	Sentiment     Sentiment      `json:"sentiment"`
	Trend         []TrendPoint   `json:"trend"`
}

const dayLayout = "2006-01-02"

// BuildAnalytics aggregates points created in [from, to]. The trend has one
// entry per UTC day of the window, including days without reviews.
func BuildAnalytics(companyID string, tr TimeRange, from, to time.Time, points []RatingPoint) *Analytics {
	a := &Analytics{
		CompanyID:    companyID,
		Range:        tr,
		From:         from,
		To:           to,
		Distribution: map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0},
	}

	type bucket struct{ sum, count int }
	days := make(map[string]*bucket)
	sum := 0

	for _, p := range points {
		if p.Rating < 1 || p.Rating > 5 {
			continue
		}
		a.TotalReviews++
		sum += p.Rating
		a.Distribution[strconv.Itoa(p.Rating)]++

		switch {
		case p.Rating >= 4:
			a.Sentiment.Positive++
		case p.Rating == 3:
			a.Sentiment.Neutral++
		default:
			a.Sentiment.Negative++
		}

		key := p.CreatedAt.UTC().Format(dayLayout)
		b, ok := days[key]
		if !ok {
			b = &bucket{}
			days[key] = b
		}
		b.sum += p.Rating
		b.count++
	}

	if a.TotalReviews > 0 {
		a.AverageRating = round2(float64(sum) / float64(a.TotalReviews))
	}

	start := truncateDay(from)
	end := truncateDay(to)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		tp := TrendPoint{Date: key}
		if b, ok := days[key]; ok {
			tp.Count = b.count
			tp.Average = round2(float64(b.sum) / float64(b.count))
		}
		a.Trend = append(a.Trend, tp)
	}

	return a
}

// AdminDay is the platform-wide activity of one day.
type AdminDay struct {
	Date          string  `json:"date"`
	NewUsers      int     `json:"new_users"`
	NewCompanies  int     `json:"new_companies"`
	NewReviews    int     `json:"new_reviews"`
	AverageRating float64 `json:"average_rating"`
}

// MaxAdminRangeDays caps the admin analytics date range.
const MaxAdminRangeDays = 366

// ParseDateRange parses inclusive YYYY-MM-DD bounds. Empty bounds default to
// the 30 days ending today.
func ParseDateRange(fromStr, toStr string, now time.Time) (from, to time.Time, err error) {
	to = truncateDay(now)
	if toStr != "" {
		if to, err = time.Parse(dayLayout, toStr); err != nil {
			return time.Time{}, time.Time{}, apperrors.Validation("to must be a date in YYYY-MM-DD format")
		}
	}
	from = to.AddDate(0, 0, -29)
	if fromStr != "" {
		if from, err = time.Parse(dayLayout, fromStr); err != nil {
			return time.Time{}, time.Time{}, apperrors.Validation("from must be a date in YYYY-MM-DD format")
		}
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, apperrors.Validation("from must not be after to")
	}
	if int(to.Sub(from).Hours()/24)+1 > MaxAdminRangeDays {
		return time.Time{}, time.Time{}, apperrors.Validation(fmt.Sprintf("date range must not exceed %d days", MaxAdminRangeDays))
	}
	return from, to, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
