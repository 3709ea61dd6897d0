package models

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexibleAmount - денежная сумма, принимающая как JSON число, так и строку
type FlexibleAmount struct {
	decimal.Decimal
	Set bool
}

// UnmarshalJSON поддерживает 25, 25.5, "25.00" и null
func (fa *FlexibleAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*fa = FlexibleAmount{}
		return nil
	}

	str := strings.TrimSpace(strings.Trim(string(data), `"`))
	if str == "" {
		*fa = FlexibleAmount{}
		return nil
	}

	d, err := decimal.NewFromString(str)
	if err != nil {
		return fmt.Errorf("invalid amount value: %s", str)
	}
	*fa = FlexibleAmount{Decimal: d, Set: true}
	return nil
}

// CreateOrderRequest - тело запроса создания заказа. Каждое поле принимается
// как в snake_case, так и в camelCase.
type CreateOrderRequest struct {
	EventIDSnake   string         `json:"event_id"`
	EventIDCamel   string         `json:"eventId"`
	UserIDSnake    string         `json:"user_id"`
	UserIDCamel    string         `json:"userId"`
	PaymentIDSnake string         `json:"payment_id"`
	PaymentIDCamel string         `json:"paymentId"`
	Description    string         `json:"description"`
	ReturnURLSnake string         `json:"return_url"`
	ReturnURLCamel string         `json:"returnUrl"`
	CancelURLSnake string         `json:"cancel_url"`
	CancelURLCamel string         `json:"cancelUrl"`
	Amount         FlexibleAmount `json:"amount"`
	GuestNameSnake string         `json:"guest_name"`
	GuestNameCamel string         `json:"guestName"`
	Referrer       string         `json:"referrer"`
}

// OrderInput is the canonical order creation input, produced by Normalize.
type OrderInput struct {
	EventID     string `validate:"required,max=64"`
	UserID      string `validate:"required,max=64"`
	PaymentID   string `validate:"omitempty,uuid"`
	Description string `validate:"max=127"`
	ReturnURL   string `validate:"omitempty,url"`
	CancelURL   string `validate:"omitempty,url"`
	Amount      *decimal.Decimal
	GuestName   string `validate:"max=255"`
	Referrer    string `validate:"max=64"`
}

// Normalize maps both spellings of every field onto one canonical input.
// When both spellings are present the snake_case value wins.
func (r *CreateOrderRequest) Normalize() OrderInput {
	in := OrderInput{
		EventID:     firstNonEmpty(r.EventIDSnake, r.EventIDCamel),
		UserID:      firstNonEmpty(r.UserIDSnake, r.UserIDCamel),
		PaymentID:   firstNonEmpty(r.PaymentIDSnake, r.PaymentIDCamel),
		Description: strings.TrimSpace(r.Description),
		ReturnURL:   firstNonEmpty(r.ReturnURLSnake, r.ReturnURLCamel),
		CancelURL:   firstNonEmpty(r.CancelURLSnake, r.CancelURLCamel),
		GuestName:   firstNonEmpty(r.GuestNameSnake, r.GuestNameCamel),
		Referrer:    strings.TrimSpace(r.Referrer),
	}
	if r.Amount.Set {
		amount := r.Amount.Decimal
		in.Amount = &amount
	}
	return in
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// CreateOrderResponse - ответ на создание заказа
type CreateOrderResponse struct {
	OrderID     string `json:"order_id"`
	ApprovalURL string `json:"approval_url"`
	Amount      string `json:"amount"`
	EventName   string `json:"event_name"`
}

// WebhookAckResponse - подтверждение обработки webhook
type WebhookAckResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id,omitempty"`
}

// EarningsSummaryResponse - сводка заработка пользователя
type EarningsSummaryResponse struct {
	UserID          string          `json:"user_id"`
	Username        string          `json:"username"`
	TotalEarnings   string          `json:"total_earnings"`
	PendingEarnings string          `json:"pending_earnings"`
	Recent          []EarningsEntry `json:"recent"`
}

// PaymentSearchResponseItem - элемент результата поиска платежей
type PaymentSearchResponseItem struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	CaptureID   string `json:"capture_id"`
	UserID      string `json:"user_id"`
	EventID     string `json:"event_id"`
	EventName   string `json:"event_name"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	ReferredBy  string `json:"referred_by,omitempty"`
	GuestName   string `json:"guest_name,omitempty"`
	CompletedAt string `json:"completed_at"`
}

// PaymentSearchResponse - результат поиска платежей
type PaymentSearchResponse struct {
	Total int64                       `json:"total"`
	Items []PaymentSearchResponseItem `json:"items"`
}
