package activity

import (
	"errors"
	"fmt"
	"time"
)

// Type identifies what an activity event describes.
type Type string

const (
	TypeCaseViewed        Type = "case_viewed"
	TypeCartAdd           Type = "cart_add"
	TypeCartRemove        Type = "cart_remove"
	TypeCheckoutCreated   Type = "checkout_created"
	TypeCaseSolved        Type = "case_solved"
	TypeEvidencePurchased Type = "evidence_purchased"

	// TypeConnectionCount is emitted by the live feed and never stored.
	TypeConnectionCount Type = "connection_count"

	// TypeReconnect tells a feed client its connection reached its lifetime.
	// Never stored.
	TypeReconnect Type = "reconnect"
)

// ErrInvalidType is returned when appending an event whose type cannot be stored.
var ErrInvalidType = errors.New("invalid activity type")

// Storable reports whether events of this type may be appended to the log.
func (t Type) Storable() bool {
	switch t {
	case TypeCaseViewed, TypeCartAdd, TypeCartRemove, TypeCheckoutCreated,
		TypeCaseSolved, TypeEvidencePurchased:
		return true
	}
	return false
}

// EngineOnly reports whether only the resolution engine may produce this type.
func (t Type) EngineOnly() bool {
	return t == TypeCaseSolved || t == TypeEvidencePurchased
}

// Event is one entry of the activity log.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Payload   Payload   `json:"payload"`
}

// Payload carries the fields relevant to an event's type. Unused fields are
// left empty.
type Payload struct {
	EvidenceID string   `json:"evidence_id,omitempty"`
	CaseID     string   `json:"case_id,omitempty"`
	CaseIDs    []string `json:"case_ids,omitempty"`
	OrderID    string   `json:"order_id,omitempty"`
	Count      int      `json:"count,omitempty"`
}

// Validate checks that the event can be stored.
func (e Event) Validate() error {
	if !e.Type.Storable() {
		return fmt.Errorf("%w: %q", ErrInvalidType, e.Type)
	}
	if e.ID == "" {
		return errors.New("event id is required")
	}
	if e.Timestamp.IsZero() {
		return errors.New("event timestamp is required")
	}
	return nil
}

// Cursor is a position in the log. Since returns events strictly after it.
//
// The zero ID sorts before every real ID, so Cursor{Time: t} includes events
// stamped exactly at t.
type Cursor struct {
	Time time.Time
	ID   string
}

// CursorAt returns the position of e.
func CursorAt(e Event) Cursor {
	return Cursor{Time: e.Timestamp, ID: e.ID}
}

// Before reports whether c sorts strictly before e.
func (c Cursor) Before(e Event) bool {
	if !c.Time.Equal(e.Timestamp) {
		return c.Time.Before(e.Timestamp)
	}
	return c.ID < e.ID
}

// Less orders events by (Timestamp, ID).
func Less(a, b Event) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}
