package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EscalationConfig controls time-based escalation for a project.
type EscalationConfig struct {
	Enabled        bool `json:"enabled"`
	TimeoutMinutes int  `json:"timeout_minutes"`
}

// Value implements driver.Valuer for database storage.
func (c EscalationConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for database retrieval.
func (c *EscalationConfig) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// Timeout returns the escalation timeout as a duration.
func (c EscalationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// Project binds inbound alerts to an ordered escalation path of
// notification groups. The order of NotificationGroupIDs determines the
// escalation sequence: level 1 is index 0.
type Project struct {
	ID          uuid.UUID `json:"id" db:"id"`
	NamespaceID string    `json:"namespace_id" db:"namespace_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`

	NotificationGroupIDs   StringList       `json:"notification_group_ids" db:"notification_group_ids"`
	NotificationTemplateID string           `json:"notification_template_id,omitempty" db:"notification_template_id"`
	EscalationConfig       EscalationConfig `json:"escalation_config" db:"escalation_config"`

	IsActive      bool       `json:"is_active" db:"is_active"`
	NotifyOnAck   bool       `json:"notify_on_ack" db:"notify_on_ack"`
	SilencedUntil *time.Time `json:"silenced_until,omitempty" db:"silenced_until"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsSilenced reports whether the project is inside a silence window.
func (p *Project) IsSilenced(now time.Time) bool {
	if p.SilencedUntil == nil {
		return false
	}
	return now.Before(*p.SilencedUntil)
}

// MaxLevel returns the highest escalation level, determined by the number of
// bound notification groups.
func (p *Project) MaxLevel() int {
	return len(p.NotificationGroupIDs)
}

// GroupIDAtLevel returns the notification group id for a 1-based level, or
// "" when the level is out of range.
func (p *Project) GroupIDAtLevel(level int) string {
	idx := level - 1
	if idx < 0 || idx >= len(p.NotificationGroupIDs) {
		return ""
	}
	return p.NotificationGroupIDs[idx]
}
