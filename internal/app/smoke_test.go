//go:build integration

package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests drive a running review server. Start it with the test host
// as a trusted proxy and a create burst above the per-address limit:
//
//	TRUSTED_PROXY_CIDRS=127.0.0.0/8,::1/128 CREATE_RATE_BURST=20 go run ./cmd/server
//	REVIEWGO_BASE_URL=http://localhost:8080 go test -tags integration ./internal/app/...
//
// Each test submits from its own forwarded address so earlier runs do not
// count against the 24h window. They are skipped when the server is
// unreachable.

func baseURL() string {
	if u := os.Getenv("REVIEWGO_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func skipIfNotRunning(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL() + "/health/live")
	if err != nil {
		t.Skipf("review server not reachable at %s: %v", baseURL(), err)
	}
	_ = resp.Body.Close()
}

// mintToken signs an access token with the server's JWT_SECRET.
func mintToken(t *testing.T, userID, role string) string {
	t.Helper()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@smoke.reviewgo.local",
		"name":  "Smoke " + role,
		"role":  role,
		"exp":   time.Now().Add(10 * time.Minute).Unix(),
	}
	if iss := os.Getenv("JWT_ISSUER"); iss != "" {
		claims["iss"] = iss
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newClientAddr returns a random documentation-range IPv6 address.
func newClientAddr() string {
	return fmt.Sprintf("2001:db8:%x:%x::%x", rand.Uint32()&0xffff, rand.Uint32()&0xffff, 1+rand.Uint32()&0xfffe)
}

// send issues one request and is safe to use from any goroutine.
func send(from, method, path, token string, body any) (int, envelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, envelope{}, err
		}
	}
	req, err := http.NewRequest(method, baseURL()+path, &buf)
	if err != nil {
		return 0, envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", from)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return 0, envelope{}, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, envelope{}, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, env, nil
}

func call(t *testing.T, from, method, path, token string, body any) (int, envelope) {
	t.Helper()
	status, env, err := send(from, method, path, token, body)
	require.NoError(t, err)
	return status, env
}

func createCompany(t *testing.T, from, token string) string {
	t.Helper()
	status, env := call(t, from, http.MethodPost, "/api/v1/companies", token, map[string]any{
		"name":     fmt.Sprintf("Smoke Co %d", time.Now().UnixNano()),
		"category": "testing",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var company struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &company))
	return company.ID
}

type createResult struct {
	status int
	id     string
	code   string
	err    error
}

// createConcurrently posts one review per token at the same time.
func createConcurrently(addrs, tokens, companyIDs []string, ratings []int) []createResult {
	results := make([]createResult, len(tokens))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			status, env, err := send(addrs[i], http.MethodPost, "/api/v1/reviews", tokens[i], map[string]any{
				"company_id": companyIDs[i],
				"rating":     ratings[i],
				"text":       "Submitted alongside other reviews.",
			})
			res := createResult{status: status, err: err}
			if env.Error != nil {
				res.code = env.Error.Code
			}
			var rv struct {
				ID string `json:"id"`
			}
			if err == nil && status == http.StatusCreated {
				res.err = json.Unmarshal(env.Data, &rv)
				res.id = rv.ID
			}
			results[i] = res
		}(i)
	}
	close(start)
	wg.Wait()
	return results
}

func TestSmoke_Health(t *testing.T) {
	skipIfNotRunning(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, err := http.Get(baseURL() + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestSmoke_ReviewLifecycle(t *testing.T) {
	skipIfNotRunning(t)

	from := newClientAddr()
	owner := mintToken(t, uuid.NewString(), "user")
	author := mintToken(t, uuid.NewString(), "user")
	admin := mintToken(t, uuid.NewString(), "admin")
	companyID := createCompany(t, from, owner)

	status, env := call(t, from, http.MethodPost, "/api/v1/reviews", author, map[string]any{
		"company_id": companyID,
		"rating":     4,
		"text":       "Quick and friendly service, would return.",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var review struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &review))
	assert.Equal(t, "pending", review.Status)

	status, env = call(t, from, http.MethodPost, "/api/v1/reviews", author, map[string]any{
		"company_id": companyID,
		"rating":     2,
		"text":       "Trying to review the same place twice.",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, env = call(t, from, http.MethodPatch, "/api/v1/reviews/"+review.ID+"/status", admin, map[string]any{"status": "approved"})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = call(t, from, http.MethodGet, "/api/v1/companies/"+companyID, admin, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var got struct {
		AverageRating float64 `json:"average_rating"`
		TotalReviews  int     `json:"total_reviews"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, 4.0, got.AverageRating)
	assert.Equal(t, 1, got.TotalReviews)

	status, _ = call(t, from, http.MethodPost, "/api/v1/reviews/"+review.ID+"/report", author, map[string]any{"reason": "my own"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestSmoke_AddressLimitHoldsUnderConcurrency(t *testing.T) {
	skipIfNotRunning(t)

	const attempts = 6
	from := newClientAddr()
	owner := mintToken(t, uuid.NewString(), "user")

	addrs := make([]string, attempts)
	tokens := make([]string, attempts)
	companies := make([]string, attempts)
	ratings := make([]int, attempts)
	for i := range attempts {
		addrs[i] = from
		tokens[i] = mintToken(t, uuid.NewString(), "user")
		companies[i] = createCompany(t, newClientAddr(), owner)
		ratings[i] = 1 + i%5
	}

	var created, limited int
	for _, res := range createConcurrently(addrs, tokens, companies, ratings) {
		require.NoError(t, res.err)
		switch res.status {
		case http.StatusCreated:
			created++
		case http.StatusTooManyRequests:
			assert.Equal(t, "RATE_LIMITED", res.code)
			limited++
		default:
			t.Errorf("unexpected status %d (%s)", res.status, res.code)
		}
	}
	assert.Equal(t, 5, created)
	assert.GreaterOrEqual(t, limited, 1)
}

func TestSmoke_ConcurrentReviewsForOneCompany(t *testing.T) {
	skipIfNotRunning(t)

	const reviewers = 8
	owner := mintToken(t, uuid.NewString(), "user")
	admin := mintToken(t, uuid.NewString(), "admin")
	companyID := createCompany(t, newClientAddr(), owner)

	addrs := make([]string, reviewers)
	tokens := make([]string, reviewers)
	companies := make([]string, reviewers)
	ratings := make([]int, reviewers)
	sum := 0
	for i := range reviewers {
		addrs[i] = newClientAddr()
		tokens[i] = mintToken(t, uuid.NewString(), "user")
		companies[i] = companyID
		ratings[i] = 1 + i%5
		sum += ratings[i]
	}

	results := createConcurrently(addrs, tokens, companies, ratings)
	for i, res := range results {
		require.NoError(t, res.err)
		require.Equal(t, http.StatusCreated, res.status, "reviewer %d: %s", i, res.code)
	}

	var wg sync.WaitGroup
	statuses := make([]int, reviewers)
	for i, res := range results {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			statuses[i], _, _ = send(newClientAddr(), http.MethodPatch, "/api/v1/reviews/"+id+"/status", admin, map[string]any{"status": "approved"})
		}(i, res.id)
	}
	wg.Wait()
	for i, status := range statuses {
		assert.Equal(t, http.StatusOK, status, "approve %d", i)
	}

	status, env := call(t, newClientAddr(), http.MethodGet, "/api/v1/companies/"+companyID, admin, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var got struct {
		AverageRating float64 `json:"average_rating"`
		TotalReviews  int     `json:"total_reviews"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, reviewers, got.TotalReviews)
	assert.InDelta(t, float64(sum)/reviewers, got.AverageRating, 1e-9)
}
