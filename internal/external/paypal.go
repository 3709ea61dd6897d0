package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "fanpass/internal/errors"

	"github.com/shopspring/decimal"
)

const (
	PaypalSandboxURL    = "https://api-m.sandbox.paypal.com"
	PaypalProductionURL = "https://api-m.paypal.com"
)

// Order intents and statuses used by the pipeline
const (
	IntentCapture        = "CAPTURE"
	UserActionPayNow     = "PAY_NOW"
	OrderStatusCompleted = "COMPLETED"
	CaptureStatusDone    = "COMPLETED"
	LinkRelApprove       = "approve"
	LinkRelPayerAction   = "payer-action"
	CurrencyUSD          = "USD"
)

// tokenExpiryMargin is subtracted from the provider's expires_in so a cached
// token is never used right at its expiry edge.
const tokenExpiryMargin = 60 * time.Second

type PaypalClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	webhookID    string
	httpClient   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

type PaypalConfig struct {
	Env          string `envconfig:"PAYPAL_ENV" default:"sandbox"`
	ClientID     string `envconfig:"PAYPAL_CLIENT_ID" required:"true"`
	ClientSecret string `envconfig:"PAYPAL_CLIENT_SECRET" required:"true"`
	BaseURL      string `envconfig:"PAYPAL_BASE_URL"`
	WebhookID    string `envconfig:"PAYPAL_WEBHOOK_ID"`
	TimeoutSec   int    `envconfig:"PAYPAL_TIMEOUT_SEC" default:"30"`
}

// ResolveBaseURL returns the explicit base URL if one is configured, otherwise
// the sandbox or production API host selected by Env.
func (c PaypalConfig) ResolveBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "live") {
		return PaypalProductionURL
	}
	return PaypalSandboxURL
}

// Provider API models (Orders v2)
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type PurchaseUnit struct {
	ReferenceID string        `json:"reference_id,omitempty"`
	Description string        `json:"description,omitempty"`
	CustomID    string        `json:"custom_id,omitempty"`
	Amount      *Money        `json:"amount,omitempty"`
	Payments    *UnitPayments `json:"payments,omitempty"`
}

type UnitPayments struct {
	Captures []Capture `json:"captures,omitempty"`
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *Money `json:"amount,omitempty"`
}

type ApplicationContext struct {
	BrandName          string `json:"brand_name,omitempty"`
	ReturnURL          string `json:"return_url,omitempty"`
	CancelURL          string `json:"cancel_url,omitempty"`
	UserAction         string `json:"user_action,omitempty"`
	ShippingPreference string `json:"shipping_preference,omitempty"`
}

type CreateOrderRequest struct {
	Intent             string              `json:"intent"`
	PurchaseUnits      []PurchaseUnit      `json:"purchase_units"`
	ApplicationContext *ApplicationContext `json:"application_context,omitempty"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Links         []Link         `json:"links"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// ApproveLink returns the buyer redirect link of a freshly created order.
func (o *Order) ApproveLink() string {
	for _, l := range o.Links {
		if l.Rel == LinkRelApprove || l.Rel == LinkRelPayerAction {
			return l.Href
		}
	}
	return ""
}

// Amount returns the value of the first purchase unit. ok is false when the
// response carries no parsable amount.
func (o *Order) Amount() (decimal.Decimal, bool) {
	if len(o.PurchaseUnits) == 0 || o.PurchaseUnits[0].Amount == nil {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(o.PurchaseUnits[0].Amount.Value)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// CompletedCaptureID returns the first completed capture of the order, if any.
func (o *Order) CompletedCaptureID() string {
	for _, pu := range o.PurchaseUnits {
		if pu.Payments == nil {
			continue
		}
		for _, c := range pu.Payments.Captures {
			if c.Status == CaptureStatusDone {
				return c.ID
			}
		}
	}
	return ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type providerError struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	DebugID          string `json:"debug_id"`
}

func (e providerError) String() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("%s: %s (debug_id=%s)", e.Name, e.Message, e.DebugID)
	case e.Error != "":
		return fmt.Sprintf("%s: %s", e.Error, e.ErrorDescription)
	default:
		return "no error details"
	}
}

// WebhookHeaders carries the transmission headers needed to verify a webhook.
type WebhookHeaders struct {
	AuthAlgo         string
	CertURL          string
	TransmissionID   string
	TransmissionSig  string
	TransmissionTime string
}

type verifyWebhookRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyWebhookResponse struct {
	VerificationStatus string `json:"verification_status"`
}

func NewPaypalClient(cfg PaypalConfig) *PaypalClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &PaypalClient{
		baseURL:      cfg.ResolveBaseURL(),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		webhookID:    cfg.WebhookID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// WebhookVerificationEnabled reports whether a webhook id is configured.
func (pc *PaypalClient) WebhookVerificationEnabled() bool {
	return pc.webhookID != ""
}

// AccessToken returns a cached client-credentials token, exchanging the
// client id and secret for a new one when the cached token is about to expire.
func (pc *PaypalClient) AccessToken(ctx context.Context) (string, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.token != "" && pc.now().Before(pc.tokenExpiry) {
		return pc.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: failed to build token request: %v", apperrors.ErrUpstreamAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(pc.clientID, pc.clientSecret)

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %v", apperrors.ErrUpstreamAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status code %d: %s", apperrors.ErrUpstreamAuth, resp.StatusCode, readProviderError(resp.Body))
	}

	var result tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: failed to decode token response: %v", apperrors.ErrUpstreamAuth, err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", apperrors.ErrUpstreamAuth)
	}

	ttl := time.Duration(result.ExpiresIn)*time.Second - tokenExpiryMargin
	if ttl < 0 {
		ttl = 0
	}
	pc.token = result.AccessToken
	pc.tokenExpiry = pc.now().Add(ttl)

	return pc.token, nil
}

func (pc *PaypalClient) invalidateToken() {
	pc.mu.Lock()
	pc.token = ""
	pc.tokenExpiry = time.Time{}
	pc.mu.Unlock()
}

// CreateOrder creates a checkout order. requestID is sent as the provider's
// idempotency key so a retried call does not create a second order.
func (pc *PaypalClient) CreateOrder(ctx context.Context, order CreateOrderRequest, requestID string) (*Order, error) {
	headers := map[string]string{"Prefer": "return=representation"}
	if requestID != "" {
		headers["PayPal-Request-Id"] = requestID
	}

	var result Order
	if err := pc.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", order, headers, &result); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if result.ID == "" {
		return nil, fmt.Errorf("%w: order response has no id", apperrors.ErrUpstreamProtocol)
	}

	return &result, nil
}

// GetOrder fetches the current state of an order.
func (pc *PaypalClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var result Order
	if err := pc.doJSON(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), nil, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return &result, nil
}

// VerifyWebhookSignature asks the provider to verify a webhook delivery
// against the configured webhook id.
func (pc *PaypalClient) VerifyWebhookSignature(ctx context.Context, h WebhookHeaders, body []byte) (bool, error) {
	if pc.webhookID == "" {
		return false, fmt.Errorf("webhook id is not configured")
	}

	reqBody := verifyWebhookRequest{
		AuthAlgo:         h.AuthAlgo,
		CertURL:          h.CertURL,
		TransmissionID:   h.TransmissionID,
		TransmissionSig:  h.TransmissionSig,
		TransmissionTime: h.TransmissionTime,
		WebhookID:        pc.webhookID,
		WebhookEvent:     json.RawMessage(body),
	}

	var result verifyWebhookResponse
	if err := pc.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", reqBody, nil, &result); err != nil {
		return false, fmt.Errorf("failed to verify webhook signature: %w", err)
	}

	return result.VerificationStatus == "SUCCESS", nil
}

func (pc *PaypalClient) doJSON(ctx context.Context, method, path string, body interface{}, headers map[string]string, out interface{}) error {
	token, err := pc.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, pc.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", apperrors.ErrUpstreamProtocol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		pc.invalidateToken()
		return fmt.Errorf("%w: access token rejected: %s", apperrors.ErrUpstreamAuth, readProviderError(resp.Body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status code %d: %s", apperrors.ErrUpstreamProtocol, resp.StatusCode, readProviderError(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", apperrors.ErrUpstreamProtocol, err)
	}
	return nil
}

func readProviderError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "no error details"
	}
	var pe providerError
	if err := json.Unmarshal(data, &pe); err != nil {
		return "unparseable error body"
	}
	return pe.String()
}
