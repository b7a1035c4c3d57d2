// Package channel implements the outbound delivery transports: Feishu
// webhook bots, Slack incoming webhooks, Resend email and Twilio SMS.
// Senders are transport-only; message content arrives pre-rendered through
// the event metadata or sender overrides.
package channel

// Metadata keys understood by senders.
const (
	// MetaTemplateCard holds a pre-rendered Feishu card document.
	MetaTemplateCard = "template_card"

	MetaTicketID    = "ticket_id"
	MetaAckToken    = "ack_token"
	MetaTitle       = "title"
	MetaDescription = "description"
	MetaSeverity    = "severity"
	MetaAckURL      = "ack_url"
	MetaDetailURL   = "detail_url"
)

// Event is the unit handed to a sender. Payload carries the original
// webhook body, Meta carries ticket details and pre-rendered content.
type Event struct {
	Source  string                 `json:"source"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
	Labels  map[string]string      `json:"labels,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// MetaString returns a string metadata value, or "" when absent.
func (e *Event) MetaString(key string) string {
	if e.Meta == nil {
		return ""
	}
	if s, ok := e.Meta[key].(string); ok {
		return s
	}
	return ""
}

// Title returns the display title, falling back to the payload.
func (e *Event) Title() string {
	if t := e.MetaString(MetaTitle); t != "" {
		return t
	}
	if e.Payload != nil {
		if t, ok := e.Payload["title"].(string); ok && t != "" {
			return t
		}
	}
	return "Alert"
}
