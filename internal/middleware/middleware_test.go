package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fanpass/internal/logger"
	"fanpass/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.POST("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_Preflight(t *testing.T) {
	r := newRouter(CORS())

	w := serve(r, httptest.NewRequest(http.MethodOptions, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Empty(t, w.Body.String())
}

func TestCORS_PreflightRouteHandlesItself(t *testing.T) {
	r := newRouter(CORS())
	r.OPTIONS("/hook", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Status(http.StatusNoContent)
	})

	w := serve(r, httptest.NewRequest(http.MethodOptions, "/hook", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	var seen string
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) {
		seen, _ = logger.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/id", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "upstream-1")
	w = serve(r, req)
	assert.Equal(t, "upstream-1", seen)
	assert.Equal(t, "upstream-1", w.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	r := newRouter(Recovery())

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/users/:id/earnings", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/users/:id/earnings", "200")
	before := testutil.ToFloat64(counter)

	serve(r, httptest.NewRequest(http.MethodGet, "/api/users/u-1/earnings", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/api/users/u-2/earnings", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestAdminToken(t *testing.T) {
	r := newRouter(AdminToken("s3cret"))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(AdminTokenHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(AdminTokenHeader, "s3cret")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestAdminToken_DisabledWhenEmpty(t *testing.T) {
	r := newRouter(AdminToken(""))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := newRouter(RateLimit(NewRateLimiter(1, 2, time.Minute)))

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/ping", nil)
		req.RemoteAddr = ip + ":1234"
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusOK, post("10.0.0.1"))
	assert.Equal(t, http.StatusOK, post("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.1"))
	// buckets are per client
	assert.Equal(t, http.StatusOK, post("10.0.0.2"))
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	rl.Allow("10.0.0.1")
	require.Len(t, rl.visitors, 1)

	rl.evict(time.Now().Add(30 * time.Second))
	assert.Len(t, rl.visitors, 1)

	rl.evict(time.Now().Add(2 * time.Minute))
	assert.Empty(t, rl.visitors)
}
