package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	apperrors "github.com/bulletops/bullet/internal/errors"
)

// SlackSender posts Block Kit messages to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
}

// NewSlackSender creates a sender for one incoming webhook.
func NewSlackSender(webhookURL string) *SlackSender {
	return &SlackSender{webhookURL: webhookURL}
}

func (s *SlackSender) Name() string { return "slack" }

// Send posts the event, using the ticket block layout when ticket metadata
// is present and a plain text dump otherwise.
func (s *SlackSender) Send(ctx context.Context, event *Event) error {
	if s.webhookURL == "" {
		return apperrors.NewTransportError("slack", errors.New("webhook url is not configured"))
	}

	var msg *slack.WebhookMessage
	if event.MetaString(MetaTicketID) != "" {
		msg = s.buildTicketMessage(event)
	} else {
		msg = s.buildTextMessage(event)
	}

	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return apperrors.NewTransportError("slack", err)
	}
	return nil
}

var severityEmoji = map[string]string{
	"critical": "🔴",
	"error":    "🔴",
	"warning":  "🟠",
	"info":     "🔵",
}

func (s *SlackSender) buildTicketMessage(event *Event) *slack.WebhookMessage {
	severity := event.MetaString(MetaSeverity)
	emoji, ok := severityEmoji[severity]
	if !ok {
		emoji = "🔵"
	}
	title := fmt.Sprintf("%s %s", emoji, event.Title())

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, true, false)),
	}

	if desc := event.MetaString(MetaDescription); desc != "" {
		desc = truncateRunes(desc, 2000)
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, desc, false, false), nil, nil))
	}

	if len(event.Labels) > 0 {
		labelText := "*Labels:*"
		count := 0
		for k, v := range event.Labels {
			if count == 10 {
				break
			}
			labelText += fmt.Sprintf(" `%s=%s`", k, v)
			count++
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, labelText, false, false), nil, nil))
	}

	blocks = append(blocks, slack.NewDividerBlock())

	var buttons []slack.BlockElement
	if ackURL := event.MetaString(MetaAckURL); ackURL != "" {
		ack := slack.NewButtonBlockElement("ack", "ack",
			slack.NewTextBlockObject(slack.PlainTextType, "✅ Acknowledge", true, false))
		ack.URL = ackURL
		ack.Style = slack.StylePrimary
		buttons = append(buttons, ack)
	}
	if detailURL := event.MetaString(MetaDetailURL); detailURL != "" {
		detail := slack.NewButtonBlockElement("detail", "detail",
			slack.NewTextBlockObject(slack.PlainTextType, "📋 View Details", true, false))
		detail.URL = detailURL
		buttons = append(buttons, detail)
	}
	if len(buttons) > 0 {
		blocks = append(blocks, slack.NewActionBlock("ticket-actions", buttons...))
	}

	footer := fmt.Sprintf("Source: %s | Ticket: %s", event.Source, event.MetaString(MetaTicketID))
	blocks = append(blocks, slack.NewContextBlock("ticket-footer",
		slack.NewTextBlockObject(slack.MarkdownType, footer, false, false)))

	return &slack.WebhookMessage{
		Text:   title,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}

func (s *SlackSender) buildTextMessage(event *Event) *slack.WebhookMessage {
	payloadJSON, _ := json.MarshalIndent(event.Payload, "", "  ")
	labelsJSON, _ := json.Marshal(event.Labels)
	text := fmt.Sprintf("*[%s]* %s\n*Labels:* %s\n*Payload:*\n```%s```",
		event.Source, event.Type, labelsJSON, payloadJSON)
	return &slack.WebhookMessage{Text: text}
}
