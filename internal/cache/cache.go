package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/ReviewGo/internal/domain"
)

const (
	listPrefix      = "reviews:list:"
	analyticsPrefix = "reviews:analytics:"
	allCompanies    = "all"
	scanBatch       = 100
)

// Default TTLs for cached review reads.
const (
	DefaultListTTL      = 5 * time.Minute
	DefaultAnalyticsTTL = time.Hour
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "reviewgo",
		Name:      "cache_requests_total",
		Help:      "Review cache lookups by kind and result",
	},
	[]string{"kind", "result"},
)

// ReviewCache caches review listings and company analytics in Redis.
type ReviewCache struct {
	client       redis.Cmdable
	listTTL      time.Duration
	analyticsTTL time.Duration
}

// NewReviewCache creates a ReviewCache. Zero TTLs fall back to the defaults.
func NewReviewCache(client redis.Cmdable, listTTL, analyticsTTL time.Duration) *ReviewCache {
	if listTTL <= 0 {
		listTTL = DefaultListTTL
	}
	if analyticsTTL <= 0 {
		analyticsTTL = DefaultAnalyticsTTL
	}
	return &ReviewCache{
		client:       client,
		listTTL:      listTTL,
		analyticsTTL: analyticsTTL,
	}
}

// ListKey derives the cache key of a review listing from the exact filter
// set and page.
func ListKey(f domain.ReviewFilter) string {
	company := allCompanies
	if f.CompanyID != nil {
		company = *f.CompanyID
	}

	var b strings.Builder
	b.WriteString(listPrefix)
	b.WriteString(company)
	b.WriteString(":status=")
	if f.Status != nil {
		b.WriteString(string(*f.Status))
	}
	b.WriteString(":rating=")
	if f.Rating != nil {
		b.WriteString(strconv.Itoa(*f.Rating))
	}
	b.WriteString(":verified=")
	if f.Verified != nil {
		b.WriteString(strconv.FormatBool(*f.Verified))
	}
	fmt.Fprintf(&b, ":page=%d:per_page=%d", f.Page, f.PerPage)
	return b.String()
}

// AnalyticsKey is the cache key of a company's analytics for a time range.
func AnalyticsKey(companyID string, tr domain.TimeRange) string {
	return analyticsPrefix + companyID + ":" + string(tr)
}

// GetList loads a cached listing into dst and reports whether it was found.
func (c *ReviewCache) GetList(ctx context.Context, f domain.ReviewFilter, dst any) (bool, error) {
	return c.get(ctx, "list", ListKey(f), dst)
}

// SetList stores a listing under the filter's key.
func (c *ReviewCache) SetList(ctx context.Context, f domain.ReviewFilter, v any) error {
	return c.set(ctx, ListKey(f), v, c.listTTL)
}

// GetAnalytics loads cached analytics into dst and reports whether they were found.
func (c *ReviewCache) GetAnalytics(ctx context.Context, companyID string, tr domain.TimeRange, dst any) (bool, error) {
	return c.get(ctx, "analytics", AnalyticsKey(companyID, tr), dst)
}

// SetAnalytics stores a company's analytics for a time range.
func (c *ReviewCache) SetAnalytics(ctx context.Context, companyID string, tr domain.TimeRange, v any) error {
	return c.set(ctx, AnalyticsKey(companyID, tr), v, c.analyticsTTL)
}

// InvalidateCompany removes every cached read that a write to the company's
// reviews could change: its listings, the unscoped listings and its analytics.
func (c *ReviewCache) InvalidateCompany(ctx context.Context, companyID string) error {
	patterns := []string{
		listPrefix + companyID + ":*",
		listPrefix + allCompanies + ":*",
		analyticsPrefix + companyID + ":*",
	}
	var errs []error
	for _, p := range patterns {
		if err := c.deletePattern(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *ReviewCache) get(ctx context.Context, kind, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			requestsTotal.WithLabelValues(kind, "miss").Inc()
			return false, nil
		}
		requestsTotal.WithLabelValues(kind, "error").Inc()
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		requestsTotal.WithLabelValues(kind, "error").Inc()
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	requestsTotal.WithLabelValues(kind, "hit").Inc()
	return true, nil
}

func (c *ReviewCache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// deletePattern walks the keyspace with SCAN so invalidation never blocks
// Redis the way KEYS would.
func (c *ReviewCache) deletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del %s: %w", pattern, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
