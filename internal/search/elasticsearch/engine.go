package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/ReviewGo/internal/search"
)

// Engine is an Elasticsearch-backed search.Engine.
type Engine struct {
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

// New connects to the cluster at addresses. An empty indexName selects
// DefaultIndexName. Call EnsureIndex before serving traffic.
func New(addresses []string, indexName string, logger *slog.Logger) (*Engine, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}
	return NewWithClient(client, indexName, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *elasticsearch.Client, indexName string, logger *slog.Logger) *Engine {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return &Engine{client: client, index: indexName, logger: logger}
}

// do performs req and turns transport failures and error statuses into
// errors prefixed with op. Statuses listed in ok are accepted. On success
// the caller owns the response body.
func (e *Engine) do(ctx context.Context, op string, req esapi.Request, ok ...int) (*esapi.Response, error) {
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch %s: %w", op, err)
	}
	if res.IsError() && !slices.Contains(ok, res.StatusCode) {
		defer res.Body.Close()
		return nil, clusterError(op, res)
	}
	return res, nil
}

func clusterError(op string, res *esapi.Response) error {
	var body struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil && body.Error.Type != "" {
		return fmt.Errorf("elasticsearch %s: %s: %s", op, body.Error.Type, body.Error.Reason)
	}
	return fmt.Errorf("elasticsearch %s: unexpected status %s", op, res.Status())
}

// Ping checks whether the cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.do(ctx, "ping", esapi.PingRequest{})
	if err != nil {
		return err
	}
	return res.Body.Close()
}

// EnsureIndex creates the review index with its mapping when it is missing.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	res, err := e.do(ctx, "check index", esapi.IndicesExistsRequest{Index: []string{e.index}}, http.StatusNotFound)
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = e.do(ctx, "create index", esapi.IndicesCreateRequest{
		Index: e.index,
		Body:  strings.NewReader(indexMapping),
	})
	if err != nil {
		return err
	}
	_ = res.Body.Close()

	e.logger.Info("elasticsearch index created", slog.String("index", e.index))
	return nil
}

// Index adds or replaces one review document.
func (e *Engine) Index(ctx context.Context, doc *search.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal review: %w", err)
	}

	res, err := e.do(ctx, "index", esapi.IndexRequest{
		Index:      e.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	})
	if err != nil {
		return err
	}
	return res.Body.Close()
}

// Delete removes a review document. A missing document is not an error.
func (e *Engine) Delete(ctx context.Context, id string) error {
	res, err := e.do(ctx, "delete", esapi.DeleteRequest{Index: e.index, DocumentID: id}, http.StatusNotFound)
	if err != nil {
		return err
	}
	return res.Body.Close()
}

// Search runs a full-text query over review text and author names.
func (e *Engine) Search(ctx context.Context, q *search.Query) (*search.Result, error) {
	q.Normalize()

	data, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.do(ctx, "search", esapi.SearchRequest{
		Index:          []string{e.index},
		Body:           bytes.NewReader(data),
		TrackTotalHits: true,
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var body struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source search.Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	result := &search.Result{
		Reviews: make([]search.Document, len(body.Hits.Hits)),
		Total:   body.Hits.Total.Value,
		Page:    q.Page,
		PerPage: q.PerPage,
		TookMs:  body.Took,
	}
	for i, hit := range body.Hits.Hits {
		result.Reviews[i] = hit.Source
	}
	return result, nil
}

// BulkIndex adds or replaces docs in one _bulk request. Per-item failures
// are collected into a single error.
func (e *Engine) BulkIndex(ctx context.Context, docs []search.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range docs {
		meta := map[string]map[string]string{"index": {"_index": e.index, "_id": docs[i].ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}
		if err := enc.Encode(&docs[i]); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := e.do(ctx, "bulk index", esapi.BulkRequest{Index: e.index, Body: &buf, Refresh: "true"})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var body struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID    string `json:"_id"`
			Error *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("elasticsearch bulk index: decode response: %w", err)
	}
	if body.Errors {
		var failed []string
		for _, item := range body.Items {
			for _, r := range item {
				if r.Error != nil {
					failed = append(failed, fmt.Sprintf("id=%s: %s: %s", r.ID, r.Error.Type, r.Error.Reason))
				}
			}
		}
		return fmt.Errorf("elasticsearch bulk index: %d of %d failed: %s", len(failed), len(docs), strings.Join(failed, "; "))
	}

	e.logger.Info("bulk indexed reviews", slog.Int("count", len(docs)))
	return nil
}

type obj = map[string]any

func buildQuery(q *search.Query) obj {
	must := obj{"match_all": obj{}}
	if text := strings.TrimSpace(q.Text); text != "" {
		must = obj{"multi_match": obj{
			"query":     text,
			"fields":    []string{"text^2", "text.arabic", "author_name"},
			"type":      "best_fields",
			"fuzziness": "AUTO",
		}}
	}

	boolQuery := obj{"must": []any{must}}
	var filters []any
	if q.CompanyID != nil && *q.CompanyID != "" {
		filters = append(filters, obj{"term": obj{"company_id": *q.CompanyID}})
	}
	if q.MinRating != nil {
		filters = append(filters, obj{"range": obj{"rating": obj{"gte": *q.MinRating}}})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return obj{
		"query": obj{"bool": boolQuery},
		"sort":  []any{obj{"_score": "desc"}, obj{"created_at": "desc"}},
		"from":  (q.Page - 1) * q.PerPage,
		"size":  q.PerPage,
	}
}
