package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fanpass/internal/models"
)

// SmokeValidator - проверка работающего сервера: health, валидация заказа и
// webhook без побочных эффектов. Ни один запрос не меняет состояние.
type SmokeValidator struct {
	baseURL string
	client  *http.Client
}

// NewSmokeValidator создает новый валидатор
func NewSmokeValidator(baseURL string) *SmokeValidator {
	return &SmokeValidator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ValidateAll проверяет все endpoints
func (v *SmokeValidator) ValidateAll(ctx context.Context) error {
	slog.Info("Starting smoke validation", "base_url", v.baseURL)

	checks := []struct {
		name string
		run  func(context.Context) error
	}{
		{"health", v.validateHealth},
		{"orders", v.validateOrders},
		{"webhooks", v.validateWebhooks},
	}

	for _, check := range checks {
		if err := check.run(ctx); err != nil {
			return fmt.Errorf("%s validation failed: %w", check.name, err)
		}
		slog.Info("Endpoints valid", "check", check.name)
	}

	slog.Info("All endpoints passed validation")
	return nil
}

func (v *SmokeValidator) validateHealth(ctx context.Context) error {
	status, body, err := v.makeRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET /health: expected 200, got %d", status)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("GET /health: failed to decode response: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("GET /health: expected status ok, got %q", health.Status)
	}
	return nil
}

// validateOrders отправляет заказы, которые не проходят валидацию и не
// доходят до платежного провайдера
func (v *SmokeValidator) validateOrders(ctx context.Context) error {
	invalid := []struct {
		name string
		body interface{}
	}{
		{"empty body", map[string]interface{}{}},
		{"missing user", map[string]interface{}{"eventId": "smoke-event"}},
		{"malformed payment id", map[string]interface{}{"event_id": "smoke-event", "user_id": "smoke-user", "payment_id": "not-a-uuid"}},
	}

	for _, tc := range invalid {
		status, body, err := v.makeRequest(ctx, http.MethodPost, "/api/orders", tc.body)
		if err != nil {
			return err
		}
		if status != http.StatusBadRequest {
			return fmt.Errorf("POST /api/orders (%s): expected 400, got %d", tc.name, status)
		}

		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
			return fmt.Errorf("POST /api/orders (%s): expected error body, got %s", tc.name, string(body))
		}
	}
	return nil
}

func (v *SmokeValidator) validateWebhooks(ctx context.Context) error {
	const path = "/api/webhooks/paypal"

	ignored := map[string]interface{}{
		"id":         "WH-SMOKE",
		"event_type": "PAYMENT.SMOKE.TEST",
		"resource":   map[string]interface{}{},
	}
	status, body, err := v.makeRequest(ctx, http.MethodPost, path, ignored)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("POST %s: expected 200, got %d", path, status)
	}
	var ack models.WebhookAckResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return fmt.Errorf("POST %s: failed to decode response: %w", path, err)
	}
	if ack.Status != "ignored" {
		return fmt.Errorf("POST %s: expected status ignored, got %q", path, ack.Status)
	}

	expectations := []struct {
		method string
		status int
	}{
		{http.MethodOptions, http.StatusOK},
		{http.MethodGet, http.StatusMethodNotAllowed},
	}
	for _, e := range expectations {
		status, _, err := v.makeRequest(ctx, e.method, path, nil)
		if err != nil {
			return err
		}
		if status != e.status {
			return fmt.Errorf("%s %s: expected %d, got %d", e.method, path, e.status, status)
		}
	}
	return nil
}

func (v *SmokeValidator) makeRequest(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// RunValidation запускает валидацию API
func RunValidation(ctx context.Context, baseURL string) error {
	return NewSmokeValidator(baseURL).ValidateAll(ctx)
}
