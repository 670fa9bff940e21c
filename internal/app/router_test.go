package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/peckup-shop/internal/config"
	"github.com/linemk/peckup-shop/internal/domain/models"
	security "github.com/linemk/peckup-shop/internal/jwt-new"
	"github.com/linemk/peckup-shop/internal/lib/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

func newTestApp(t *testing.T) (*App, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Env: "test",
		JWT: config.JWTConfig{Secret: testSecret, TokenTTL: 60},
		Orders: config.OrdersConfig{
			IdempotencyWindow: time.Hour,
			MaxIDAttempts:     3,
		},
		Receipt: config.ReceiptConfig{CompanyName: "PECKUP PRIVATE LIMITED"},
	}
	return &App{
		Config:   cfg,
		Logger:   logger.NewDiscard(),
		DB:       db,
		Registry: NewRegistry(),
	}, mock
}

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	token, err := security.NewToken(&models.User{ID: 1, Email: "user@example.com", Role: role}, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(h http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	a, mock := newTestApp(t)
	mock.ExpectPing()

	rr := serve(a.Router(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status": "ok", "receipt_cache": "disabled"}`, rr.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_HealthReceiptCacheDown(t *testing.T) {
	a, mock := newTestApp(t)
	a.Redis = redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { a.Redis.Close() })
	mock.ExpectPing()

	rr := serve(a.Router(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status": "ok", "receipt_cache": "unavailable"}`, rr.Body.String())
}

func TestRouter_HealthDatabaseDown(t *testing.T) {
	a, mock := newTestApp(t)
	mock.ExpectPing().WillReturnError(assert.AnError)

	rr := serve(a.Router(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter_Access(t *testing.T) {
	a, mock := newTestApp(t)
	router := a.Router()

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		status int
	}{
		{"orders require token", http.MethodGet, "/api/orders", "", http.StatusUnauthorized},
		{"malformed token", http.MethodGet, "/api/orders", "Bearer garbage", http.StatusUnauthorized},
		{"bad order id", http.MethodGet, "/api/orders/abc", tokenFor(t, models.RoleCustomer), http.StatusBadRequest},
		{"admin requires token", http.MethodGet, "/api/admin/orders/1", "", http.StatusUnauthorized},
		{"customer is not admin", http.MethodGet, "/api/admin/orders/1", tokenFor(t, models.RoleCustomer), http.StatusForbidden},
		{"customer cannot read stats", http.MethodGet, "/api/admin/orders/stats", tokenFor(t, models.RoleCustomer), http.StatusForbidden},
		{"customer cannot delete", http.MethodDelete, "/api/admin/orders/1", tokenFor(t, models.RoleCustomer), http.StatusForbidden},
		{"admin passes to handler", http.MethodGet, "/api/admin/orders/abc", tokenFor(t, models.RoleAdmin), http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/unknown", "", http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/orders", tokenFor(t, models.RoleCustomer), http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(router, tc.method, tc.path, tc.auth)
			assert.Equal(t, tc.status, rr.Code)
		})
	}

	// ни один из запросов не дошёл до БД
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_AdminOrderStats(t *testing.T) {
	a, mock := newTestApp(t)

	// статический сегмент stats не должен разбираться как {id}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM orders GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 2).AddRow("shipped", 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("79.99"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE created_at >= $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	rr := serve(a.Router(), http.MethodGet, "/api/admin/orders/stats", tokenFor(t, models.RoleAdmin))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"status_counts": {"pending": 2, "shipped": 1},
		"total_revenue": "79.99",
		"recent_orders": 3
	}`, rr.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	a, _ := newTestApp(t)
	router := a.Router()

	serve(router, http.MethodGet, "/api/orders", "")
	rr := serve(router, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "peckup_http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "shop", Password: "secret", Name: "peckup"})
	assert.Equal(t, "postgres://shop:secret@db:5432/peckup?sslmode=disable", dsn)
}
