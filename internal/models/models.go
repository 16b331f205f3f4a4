package models

import (
	"fmt"
	"time"
)

// Role identifies who authored a message within a thread.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Mode selects the prompt composition and length budget for a thread.
type Mode string

const (
	ModeChat     Mode = "chat"
	ModeDocument Mode = "document"
	ModeResearch Mode = "research"
	ModeCareer   Mode = "career"
)

// Tier is an account's entitlement level gating premium modes.
type Tier string

const (
	TierNone         Tier = "none"
	TierBasic        Tier = "basic"
	TierSubscription Tier = "subscription"
)

// ParseMode validates a mode received from a caller. Unknown modes are
// rejected up front rather than carried around as free-form text.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChat, ModeDocument, ModeResearch, ModeCareer:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ParseRole validates a stored role value.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ParseTier validates a stored tier value.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierNone, TierBasic, TierSubscription:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// Account is a registered user of the service. Tier is mutated only by the
// billing reconciler, never by chat traffic.
type Account struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone,omitempty"`
	Tier              Tier      `json:"tier"`
	PaymentCustomerID string    `json:"-"`
	CRMContactID      string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

// Thread is an ordered conversation owned by exactly one account. Ownership
// and mode are fixed at creation.
type Thread struct {
	ID        string    `json:"id"`
	AccountID string    `json:"-"`
	Title     string    `json:"title"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single utterance within a thread. Messages are immutable once
// written; CreatedAt is the sole ordering key within a thread. Mode is stored
// redundantly per message so mixed-mode history can be audited later.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"-"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}
