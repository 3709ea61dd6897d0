package handlers

import (
	"context"
	"net/http"

	"fanpass/internal/external"
	"fanpass/internal/models"
	"fanpass/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, in models.OrderInput) (*models.CreateOrderResponse, error)
}

type PaymentReconciler interface {
	Reconcile(ctx context.Context, orderID, captureID string) (service.Outcome, error)
}

type EarningsReader interface {
	Summary(ctx context.Context, userID string) (*models.EarningsSummaryResponse, error)
}

type PaymentSearcher interface {
	SearchPayments(ctx context.Context, query, status string, page, pageSize int) (*models.PaymentSearchResponse, error)
}

// SignatureVerifier checks webhook transmissions with the provider
type SignatureVerifier interface {
	WebhookVerificationEnabled() bool
	VerifyWebhookSignature(ctx context.Context, headers external.WebhookHeaders, body []byte) (bool, error)
}

type Handlers struct {
	orders             OrderCreator
	reconciler         PaymentReconciler
	earnings           EarningsReader
	search             PaymentSearcher
	verifier           SignatureVerifier
	completeOnApproval bool
}

// Options - search and verifier may be nil
type Options struct {
	Orders             OrderCreator
	Reconciler         PaymentReconciler
	Earnings           EarningsReader
	Search             PaymentSearcher
	Verifier           SignatureVerifier
	CompleteOnApproval bool
}

func NewHandlers(opts Options) *Handlers {
	return &Handlers{
		orders:             opts.Orders,
		reconciler:         opts.Reconciler,
		earnings:           opts.Earnings,
		search:             opts.Search,
		verifier:           opts.Verifier,
		completeOnApproval: opts.CompleteOnApproval,
	}
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// MethodNotAllowed отвечает 405 для неподдерживаемых методов
func MethodNotAllowed(c *gin.Context) {
	c.Header("Allow", "POST, OPTIONS")
	errorJSON(c, http.StatusMethodNotAllowed, "Method not allowed")
}
