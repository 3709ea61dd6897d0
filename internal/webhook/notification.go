// Package webhook parses payment provider notifications into a closed set of
// variants. Only the shapes the pipeline acts on are decoded in full.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "fanpass/internal/errors"
)

const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventOrderApproved    = "CHECKOUT.ORDER.APPROVED"
)

// ErrMissingOrderID marks a recognized notification without a correlatable order id.
var ErrMissingOrderID = fmt.Errorf("%w: missing order id", apperrors.ErrMalformedWebhook)

// Notification is one of CaptureCompleted, OrderApproved or Ignored.
type Notification interface {
	Type() string
	notification()
}

// CaptureCompleted - the provider captured the funds of an order
type CaptureCompleted struct {
	EventID   string
	OrderID   string
	CaptureID string
}

// OrderApproved - the buyer approved the order; capture may not have happened yet
type OrderApproved struct {
	EventID   string
	OrderID   string
	CaptureID string
}

// Ignored - any notification type the pipeline does not act on
type Ignored struct {
	EventID   string
	EventType string
}

func (CaptureCompleted) Type() string { return EventCaptureCompleted }
func (OrderApproved) Type() string { return EventOrderApproved }
func (n Ignored) Type() string { return n.EventType }

func (CaptureCompleted) notification() {}
func (OrderApproved) notification() {}
func (Ignored) notification() {}

type envelope struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type captureResource struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type orderResource struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID string `json:"id"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// Parse decodes a raw webhook body. Unknown event types yield Ignored without
// looking at the resource. Unparseable bodies and recognized events without an
// order id return errors wrapping ErrMalformedWebhook.
func Parse(body []byte) (Notification, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedWebhook, err)
	}

	switch env.EventType {
	case EventCaptureCompleted:
		var res captureResource
		if err := decodeResource(env.Resource, &res); err != nil {
			return nil, err
		}
		orderID := strings.TrimSpace(res.SupplementaryData.RelatedIDs.OrderID)
		if orderID == "" {
			return nil, ErrMissingOrderID
		}
		return CaptureCompleted{EventID: env.ID, OrderID: orderID, CaptureID: res.ID}, nil

	case EventOrderApproved:
		var res orderResource
		if err := decodeResource(env.Resource, &res); err != nil {
			return nil, err
		}
		orderID := strings.TrimSpace(res.ID)
		if orderID == "" {
			return nil, ErrMissingOrderID
		}
		n := OrderApproved{EventID: env.ID, OrderID: orderID}
		for _, pu := range res.PurchaseUnits {
			if len(pu.Payments.Captures) > 0 {
				n.CaptureID = pu.Payments.Captures[0].ID
				break
			}
		}
		return n, nil

	default:
		return Ignored{EventID: env.ID, EventType: env.EventType}, nil
	}
}

func decodeResource(raw json.RawMessage, dst interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ErrMissingOrderID
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: invalid resource: %v", apperrors.ErrMalformedWebhook, err)
	}
	return nil
}

// IsMalformed reports whether err came from an unusable notification body
func IsMalformed(err error) bool {
	return errors.Is(err, apperrors.ErrMalformedWebhook)
}
