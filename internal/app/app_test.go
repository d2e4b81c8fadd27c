package app

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
	"github.com/odyssey-erp/freightledger/internal/allocation"
	"github.com/odyssey-erp/freightledger/internal/assets"
	"github.com/odyssey-erp/freightledger/internal/observability"
	"github.com/odyssey-erp/freightledger/jobs"
	_ "github.com/odyssey-erp/freightledger/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, 10*time.Minute, cfg.AgingCacheTTL)
	require.Equal(t, int32(10), cfg.PGMaxConns)
	require.False(t, cfg.IsProduction())

	user, err := cfg.SystemUser()
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user)
}

func TestLoadConfigRejectsBadSystemUser(t *testing.T) {
	t.Setenv("SYSTEM_USER_ID", "robot")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DEPRECIATION_CRON", "0 3 1 * *")
	t.Setenv("AGING_CACHE_TTL", "90s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, "0 3 1 * *", cfg.DepreciationCron)
	require.Equal(t, 90*time.Second, cfg.AgingCacheTTL)
}

func TestErrorMapperStatuses(t *testing.T) {
	mapper := NewErrorMapper(nil)
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("lookup: %w", shared.ErrAccountNotFound), http.StatusNotFound},
		{allocation.ErrInvoiceNotFound, http.StatusNotFound},
		{shared.ErrUnbalancedEntry, http.StatusUnprocessableEntity},
		{fmt.Errorf("allocate: %w", shared.ErrOverAllocation), http.StatusUnprocessableEntity},
		{shared.ErrInvalidStatus, http.StatusConflict},
		{assets.ErrAssetDisposed, http.StatusConflict},
		{&shared.PostingFailedError{Err: errors.New("deadlock")}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		mapper.Respond(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		require.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:     &Config{AppEnv: "test", RateLimit: 100},
		JobHandler: jobs.NewHandler(nil, nil),
		Metrics:    observability.NewMetrics(),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ledger_http_requests_total")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv("ODYSSEY_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv("ODYSSEY_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
