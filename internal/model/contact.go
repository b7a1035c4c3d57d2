package model

import (
	"time"

	"github.com/google/uuid"
)

// Contact is an address-book entry. A contact may represent a person
// (phones, emails) or a bot (webhook URLs). A contact is usable for a
// channel iff the corresponding address is populated.
type Contact struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`

	Phones StringList `json:"phones" db:"phones"`
	Emails StringList `json:"emails" db:"emails"`

	FeishuWebhookURL string `json:"feishu_webhook_url,omitempty" db:"feishu_webhook_url"`
	SlackWebhookURL  string `json:"slack_webhook_url,omitempty" db:"slack_webhook_url"`

	Note string `json:"note,omitempty" db:"note"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (c *Contact) HasFeishu() bool { return c.FeishuWebhookURL != "" }
func (c *Contact) HasSlack() bool  { return c.SlackWebhookURL != "" }
func (c *Contact) HasEmail() bool  { return len(c.Emails) > 0 }
func (c *Contact) HasPhone() bool  { return len(c.Phones) > 0 }
