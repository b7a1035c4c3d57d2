package model

import (
	"crypto/rand"
	"database/sql/driver"
	"strings"
	"time"

	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	// StatusIgnored marks tickets created from informational source events
	// that must never notify or escalate. Terminal.
	StatusIgnored      TicketStatus = "ignored"
	StatusPending      TicketStatus = "pending"
	StatusAcknowledged TicketStatus = "acknowledged"
	StatusEscalated    TicketStatus = "escalated"
	StatusResolved     TicketStatus = "resolved"
)

// EventType identifies an entry in the ticket timeline.
type EventType string

const (
	EventCreated         EventType = "created"
	EventNotified        EventType = "notified"
	EventNotifiedSilence EventType = "notified_silenced"
	EventRepeated        EventType = "repeated"
	EventEscalated       EventType = "escalated"
	EventMaxLevelReached EventType = "max_level_reached"
	EventAcknowledged    EventType = "acknowledged"
	EventResolved        EventType = "resolved"
)

// TicketEvent is a single entry in the ticket timeline.
type TicketEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Level     int       `json:"level,omitempty"`
	GroupName string    `json:"group_name,omitempty"`
	Success   *bool     `json:"success,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// TicketEvents is the embedded timeline column.
type TicketEvents []TicketEvent

// Value implements driver.Valuer for database storage.
func (e TicketEvents) Value() (driver.Value, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner for database retrieval.
func (e *TicketEvents) Scan(value interface{}) error {
	return scanJSON(value, e)
}

// Ticket is a durable record of one alert occurrence and its handling.
type Ticket struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	Source    string    `json:"source" db:"source"`

	Status          TicketStatus `json:"status" db:"status"`
	EscalationLevel int          `json:"escalation_level" db:"escalation_level"`

	Payload    JSONMap `json:"payload" db:"payload"`
	Labels     Labels  `json:"labels" db:"labels"`
	ParsedData JSONMap `json:"parsed_data,omitempty" db:"parsed_data"`

	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	Severity    string `json:"severity" db:"severity"`

	AckToken       string     `json:"-" db:"ack_token"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty" db:"acknowledged_by"`

	LastNotifiedAt    *time.Time `json:"last_notified_at,omitempty" db:"last_notified_at"`
	NotificationCount int        `json:"notification_count" db:"notification_count"`

	Events TicketEvents `json:"events" db:"events"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// NewTicket creates a pending ticket with a fresh id and ack token.
func NewTicket(projectID, source string) *Ticket {
	now := time.Now().UTC()
	return &Ticket{
		ID:              uuid.New(),
		ProjectID:       projectID,
		Source:          source,
		Status:          StatusPending,
		EscalationLevel: 1,
		Payload:         JSONMap{},
		Labels:          Labels{},
		AckToken:        NewAckToken(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewAckToken returns a URL-safe token with 32 bytes of entropy.
func NewAckToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func (t *Ticket) IsPending() bool      { return t.Status == StatusPending }
func (t *Ticket) IsAcknowledged() bool { return t.Status == StatusAcknowledged }
func (t *Ticket) IsResolved() bool     { return t.Status == StatusResolved }
func (t *Ticket) IsIgnored() bool      { return t.Status == StatusIgnored }

// CanEscalate reports whether the scheduler may repeat or escalate this
// ticket. Only pending or escalated tickets with critical severity qualify.
func (t *Ticket) CanEscalate() bool {
	if t.Status != StatusPending && t.Status != StatusEscalated {
		return false
	}
	return strings.EqualFold(t.Severity, "critical")
}

// AddEvent appends an entry to the timeline.
func (t *Ticket) AddEvent(eventType EventType, level int, groupName string, success *bool, details string) {
	t.Events = append(t.Events, TicketEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Level:     level,
		GroupName: groupName,
		Success:   success,
		Details:   details,
	})
}

// HasEvent reports whether the timeline contains an event of the given type.
func (t *Ticket) HasEvent(eventType EventType) bool {
	for _, e := range t.Events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

// Bool is a helper for the optional success flag on timeline events.
func Bool(v bool) *bool {
	return &v
}
