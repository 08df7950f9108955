package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-api/internal/common/config"
	"loan-api/internal/common/logger"
	"loan-api/internal/models"
	"loan-api/internal/store"
	"loan-api/internal/underwriting"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// brokenRepository fails every call that reaches the backend.
type brokenRepository struct {
	*store.MemoryRepository
}

func (brokenRepository) List(context.Context) ([]*models.Application, error) {
	return nil, fmt.Errorf("connection refused")
}

func (brokenRepository) Ping(context.Context) error {
	return fmt.Errorf("connection refused")
}

func newTestServer(t *testing.T, repo store.Repository, seed bool) *httptest.Server {
	t.Helper()
	log := logger.NewTestLogger(t)

	s := store.New(repo, store.WithLogger(log), store.WithClock(func() time.Time { return fixedNow }))
	if seed {
		require.NoError(t, s.Seed(context.Background(), store.DefaultSeed(fixedNow)))
	}

	h := NewHandler(s, underwriting.NewEngine(log), log)
	h.now = func() time.Time { return fixedNow }

	srv := httptest.NewServer(NewRouter(h, log, config.ServerConfig{Port: 3000}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decodeObject(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

const validBody = `{"firstName":"Jane","lastName":"Doe","email":"jane@example.com","income":40000,"amount":1000}`

// ==========================
// Health / readiness
// ==========================

func TestHealth(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), false)

	resp, body := do(t, srv, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	got := decodeObject(t, body)
	assert.Equal(t, "healthy", got["status"])
	assert.Equal(t, "2024-03-01T12:00:00.000Z", got["timestamp"])
}

func TestReady(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), false)

	resp, body := do(t, srv, http.MethodGet, "/ready", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", decodeObject(t, body)["status"])
}

func TestReady_BackendDown(t *testing.T) {
	srv := newTestServer(t, brokenRepository{store.NewMemoryRepository()}, false)

	resp, body := do(t, srv, http.MethodGet, "/ready", "")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	got := decodeObject(t, body)
	assert.Equal(t, "unavailable", got["status"])
	assert.Contains(t, got["error"], "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), false)
	do(t, srv, http.MethodGet, "/health", "")

	resp, body := do(t, srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

// ==========================
// POST /applications
// ==========================

func TestCreateApplication_Approved(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), false)

	resp, body := do(t, srv, http.MethodPost, "/applications", validBody)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var app models.Application
	require.NoError(t, json.Unmarshal(body, &app))
	assert.Equal(t, "APP-001", app.ID)
	assert.Equal(t, models.StatusApproved, app.Status)
	require.NotNil(t, app.Decision)
	assert.Equal(t, underwriting.ReasonIncomeMeetsMinimum, app.Decision.Reason)
	assert.Equal(t, fixedNow, app.CreatedAt)

	raw := decodeObject(t, body)
	assert.NotContains(t, raw, "updatedAt")
}

func TestCreateApplication_Decisions(t *testing.T) {
	tests := []struct {
		name     string
		income   int
		amount   int
		status   models.Status
		approved bool
		reason   string
	}{
		{"low income", 20000, 1000, models.StatusRejected, false, underwriting.ReasonIncomeBelowMinimum},
		{"large loan override", 20000, 50000, models.StatusApproved, true, underwriting.ReasonLargeLoan},
		{"income at threshold", 30000, 1000, models.StatusRejected, false, underwriting.ReasonIncomeBelowMinimum},
		{"amount at threshold", 20000, 40000, models.StatusRejected, false, underwriting.ReasonIncomeBelowMinimum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, store.NewMemoryRepository(), false)
			payload := fmt.Sprintf(`{"firstName":"Jo","lastName":"Li","email":"jo@x.io","income":%d,"amount":%d}`, tt.income, tt.amount)

			resp, body := do(t, srv, http.MethodPost, "/applications", payload)

			require.Equal(t, http.StatusCreated, resp.StatusCode)
			var app models.Application
			require.NoError(t, json.Unmarshal(body, &app))
			assert.Equal(t, tt.status, app.Status)
			assert.Equal(t, tt.approved, app.Decision.Approved)
			assert.Equal(t, tt.reason, app.Decision.Reason)
		})
	}
}

func TestCreateApplication_ValidationFailed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		details []interface{}
	}{
		{
			name: "empty object",
			body: `{}`,
			details: []interface{}{
				underwriting.ViolationFirstName,
				underwriting.ViolationLastName,
				underwriting.ViolationEmail,
				underwriting.ViolationIncome,
				underwriting.ViolationAmount,
			},
		},
		{
			name: "array body",
			body: `[1,2]`,
			details: []interface{}{
				underwriting.ViolationFirstName,
				underwriting.ViolationLastName,
				underwriting.ViolationEmail,
				underwriting.ViolationIncome,
				underwriting.ViolationAmount,
			},
		},
		{
			name:    "bad email and string income",
			body:    `{"firstName":"Jane","lastName":"Doe","email":"nope","income":"40000","amount":1000}`,
			details: []interface{}{underwriting.ViolationEmail, underwriting.ViolationIncome},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, store.NewMemoryRepository(), false)

			resp, body := do(t, srv, http.MethodPost, "/applications", tt.body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			got := decodeObject(t, body)
			assert.Equal(t, "Validation failed", got["error"])
			assert.Equal(t, tt.details, got["details"])
		})
	}
}

func TestCreateApplication_UnreadableBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"truncated json", `{"firstName":`},
		{"null", `null`},
		{"bare string", `"Jane"`},
		{"trailing data", validBody + `}`},
		{"over 100kB", `{"firstName":"` + strings.Repeat("a", 150<<10) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, store.NewMemoryRepository(), false)

			resp, body := do(t, srv, http.MethodPost, "/applications", tt.body)

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.JSONEq(t, `{"error":"Something went wrong!"}`, string(body))

			_, list := do(t, srv, http.MethodGet, "/applications", "")
			assert.JSONEq(t, `[]`, string(list))
		})
	}
}

func TestCreateApplication_LargeBodyUnderLimit(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), false)
	body := fmt.Sprintf(`{"firstName":"%s","lastName":"Doe","email":"jane@example.com","income":40000,"amount":1000}`,
		strings.Repeat("a", 90<<10))

	resp, _ := do(t, srv, http.MethodPost, "/applications", body)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateApplication_FailedValidationDoesNotConsumeID(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), false)

	resp, _ := do(t, srv, http.MethodPost, "/applications", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, srv, http.MethodPost, "/applications", validBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "APP-001", decodeObject(t, body)["id"])
}

func TestCreateApplication_IDsAfterSeed(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), true)

	resp, body := do(t, srv, http.MethodPost, "/applications", validBody)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "APP-006", decodeObject(t, body)["id"])
}

func TestCreateApplication_Concurrent(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), false)

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/applications", strings.NewReader(validBody))
			resp, err := srv.Client().Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			var app models.Application
			if json.NewDecoder(resp.Body).Decode(&app) == nil {
				ids <- app.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

// ==========================
// GET /applications
// ==========================

func TestListApplications_SeededOrder(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), true)
	do(t, srv, http.MethodPost, "/applications", validBody)

	resp, body := do(t, srv, http.MethodGet, "/applications", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var apps []models.Application
	require.NoError(t, json.Unmarshal(body, &apps))
	require.Len(t, apps, 6)
	for i, app := range apps {
		assert.Equal(t, store.FormatID(int64(i+1)), app.ID)
	}
	assert.Nil(t, apps[3].Decision)
	assert.Equal(t, models.StatusPending, apps[3].Status)
}

func TestListApplications_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), false)

	resp, body := do(t, srv, http.MethodGet, "/applications", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestListApplications_StorageFailure(t *testing.T) {
	srv := newTestServer(t, brokenRepository{store.NewMemoryRepository()}, false)

	resp, body := do(t, srv, http.MethodGet, "/applications", "")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Something went wrong!"}`, string(body))
}

// ==========================
// GET /applications/{id}
// ==========================

func TestGetApplication(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), true)

	_, first := do(t, srv, http.MethodGet, "/applications/APP-003", "")
	resp, second := do(t, srv, http.MethodGet, "/applications/APP-003", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, string(first), string(second))
	got := decodeObject(t, second)
	assert.Equal(t, "funded", got["status"])
	assert.Contains(t, got, "updatedAt")
}

func TestGetApplication_NotFound(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), true)

	resp, body := do(t, srv, http.MethodGet, "/applications/APP-999", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Application not found"}`, string(body))
}

// ==========================
// PUT /applications/{id}/status
// ==========================

func TestUpdateStatus_Funded(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), true)

	resp, body := do(t, srv, http.MethodPut, "/applications/APP-001/status", `{"status":"funded"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var app models.Application
	require.NoError(t, json.Unmarshal(body, &app))
	assert.Equal(t, models.StatusFunded, app.Status)
	require.NotNil(t, app.UpdatedAt)
	assert.Equal(t, fixedNow, *app.UpdatedAt)
	require.NotNil(t, app.Decision)
	assert.True(t, app.Decision.Approved)

	_, after := do(t, srv, http.MethodGet, "/applications/APP-001", "")
	assert.Equal(t, "funded", decodeObject(t, after)["status"])
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), true)
	_, before := do(t, srv, http.MethodGet, "/applications/APP-002", "")

	for _, body := range []string{`{"status":"bogus"}`, `{}`, `{"status":5}`, `[]`, ``} {
		resp, got := do(t, srv, http.MethodPut, "/applications/APP-002/status", body)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.JSONEq(t,
			`{"error":"Invalid status","validStatuses":["pending","approved","rejected","funded"]}`,
			string(got), body)
	}

	_, after := do(t, srv, http.MethodGet, "/applications/APP-002", "")
	assert.JSONEq(t, string(before), string(after))
}

func TestUpdateStatus_NotFoundWinsOverInvalidStatus(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), true)

	resp, body := do(t, srv, http.MethodPut, "/applications/APP-999/status", `{"status":"bogus"}`)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Application not found"}`, string(body))
}

func TestUpdateStatus_UnreadableBody(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), true)
	_, before := do(t, srv, http.MethodGet, "/applications/APP-002", "")

	for _, path := range []string{"/applications/APP-002/status", "/applications/APP-999/status"} {
		for _, body := range []string{`not json`, `{"status":`, `null`} {
			resp, got := do(t, srv, http.MethodPut, path, body)

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, path+" "+body)
			assert.JSONEq(t, `{"error":"Something went wrong!"}`, string(got), body)
		}
	}

	_, after := do(t, srv, http.MethodGet, "/applications/APP-002", "")
	assert.JSONEq(t, string(before), string(after))
}

// ==========================
// Fallbacks and middleware
// ==========================

func TestUnknownEndpoint(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), false)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/nope"},
		{http.MethodDelete, "/applications/APP-001"},
		{http.MethodPost, "/health"},
		{http.MethodGet, "/applications/APP-001/status"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, body := do(t, srv, tt.method, tt.path, "")

			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.JSONEq(t, `{"error":"Endpoint not found"}`, string(body))
		})
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryRepository(), false)

	resp, _ := do(t, srv, http.MethodOptions, "/applications", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecover(t *testing.T) {
	mw := NewMiddleware(logger.NewTestLogger(t), "")
	r := chi.NewRouter()
	r.Use(mw.Recover)
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Something went wrong!"}`, rec.Body.String())
}
