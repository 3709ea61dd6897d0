package validation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"fanpass/internal/handlers"
	"fanpass/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTargetServer(t *testing.T, healthStatus int) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := handlers.NewHandlers(handlers.Options{
		Orders: service.NewOrderService(nil, nil, nil, nil, "https://fanpass.example"),
	})

	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		if healthStatus != http.StatusOK {
			status = "degraded"
		}
		c.JSON(healthStatus, gin.H{"status": status})
	})
	r.POST("/api/orders", h.CreateOrder)
	r.POST("/api/webhooks/paypal", h.ReceivePaymentWebhook)
	r.OPTIONS("/api/webhooks/paypal", h.WebhookPreflight)
	r.GET("/api/webhooks/paypal", handlers.MethodNotAllowed)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestSmokeValidator_Passes(t *testing.T) {
	srv := newTargetServer(t, http.StatusOK)

	require.NoError(t, RunValidation(context.Background(), srv.URL+"/"))
}

func TestSmokeValidator_UnhealthyServer(t *testing.T) {
	srv := newTargetServer(t, http.StatusServiceUnavailable)

	err := NewSmokeValidator(srv.URL).ValidateAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health validation failed")
}

func TestSmokeValidator_Unreachable(t *testing.T) {
	srv := newTargetServer(t, http.StatusOK)
	srv.Close()

	assert.Error(t, NewSmokeValidator(srv.URL).ValidateAll(context.Background()))
}
