package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type EventKind string

const (
	EventCheckoutCompleted EventKind = "checkout.completed"
	EventSubscriptionEnded EventKind = "subscription.ended"
)

type PurchaseKind string

const (
	PurchaseOneTime   PurchaseKind = "one_time"
	PurchaseRecurring PurchaseKind = "recurring"
)

// Event is one payment-processor notification. Delivery is at-least-once and
// may be out of order; Reconciler.Apply is written so replays are harmless.
type Event struct {
	Kind         EventKind    `json:"kind"`
	AccountRef   string       `json:"account_ref,omitempty"`
	CustomerID   string       `json:"customer_id,omitempty"`
	PurchaseKind PurchaseKind `json:"purchase_kind,omitempty"`
}

// ParseEvent decodes a webhook payload and checks the closed enumerations up
// front so unknown kinds never reach the reconciler.
func ParseEvent(payload []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("error decoding payment event: %w", err)
	}
	switch evt.Kind {
	case EventCheckoutCompleted:
		if evt.PurchaseKind != PurchaseOneTime && evt.PurchaseKind != PurchaseRecurring {
			return nil, fmt.Errorf("unknown purchase kind %q", evt.PurchaseKind)
		}
	case EventSubscriptionEnded:
	default:
		return nil, fmt.Errorf("unknown event kind %q", evt.Kind)
	}
	return &evt, nil
}

// Sign computes the hex HMAC-SHA256 the payment processor attaches to each
// delivery. Exported so tests and local tooling can produce valid payloads.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature authenticates a delivery. Events failing verification must
// be rejected before any state mutation; retries on rejection belong to the
// transport, not this package.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
