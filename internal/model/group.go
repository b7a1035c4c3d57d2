package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChannelType is a notification delivery channel kind.
type ChannelType string

const (
	ChannelFeishu ChannelType = "feishu"
	ChannelEmail  ChannelType = "email"
	ChannelSMS    ChannelType = "sms"
	ChannelSlack  ChannelType = "slack"
)

// ChannelConfig binds a channel type to the contacts reached through it.
//
// The address used depends on the type:
//   - feishu: contact.FeishuWebhookURL
//   - email: contact.Emails
//   - sms: contact.Phones
//   - slack: contact.SlackWebhookURL
type ChannelConfig struct {
	Type       ChannelType `json:"type"`
	ContactIDs []string    `json:"contact_ids"`
}

// ChannelConfigs is the embedded channel list column.
type ChannelConfigs []ChannelConfig

// Value implements driver.Valuer for database storage.
func (c ChannelConfigs) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner for database retrieval.
func (c *ChannelConfigs) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// NotificationGroup is a shared set of channels notified together at one
// escalation level.
type NotificationGroup struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`

	// RepeatInterval is the minutes between repeat notifications at this
	// level. Zero means no repeats.
	RepeatInterval int            `json:"repeat_interval,omitempty" db:"repeat_interval"`
	ChannelConfigs ChannelConfigs `json:"channel_configs" db:"channel_configs"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasRepeat reports whether the group repeats notifications.
func (g *NotificationGroup) HasRepeat() bool {
	return g.RepeatInterval > 0
}

// RepeatEvery returns the repeat interval as a duration.
func (g *NotificationGroup) RepeatEvery() time.Duration {
	return time.Duration(g.RepeatInterval) * time.Minute
}
