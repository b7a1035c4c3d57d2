package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/bulletops/bullet/internal/errors"
)

const feishuTimeout = 30 * time.Second

// FeishuSender posts interactive cards to a Feishu webhook bot.
type FeishuSender struct {
	webhookURL string
	secret     string
	client     *http.Client
}

// NewFeishuSender creates a sender for one webhook bot. secret may be empty
// when the bot has no signature verification configured.
func NewFeishuSender(webhookURL, secret string) *FeishuSender {
	return &FeishuSender{
		webhookURL: webhookURL,
		secret:     secret,
		client:     &http.Client{Timeout: feishuTimeout},
	}
}

func (s *FeishuSender) Name() string { return "feishu" }

// Send posts the event as an interactive card, preferring a pre-rendered
// template card, then the built-in ticket card, then a plain text dump.
func (s *FeishuSender) Send(ctx context.Context, event *Event) error {
	if s.webhookURL == "" {
		return apperrors.NewTransportError("feishu", errors.New("webhook url is not configured"))
	}

	message := s.buildMessage(event)

	if s.secret != "" {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		message["timestamp"] = timestamp
		message["sign"] = s.sign(timestamp)
	}

	body, err := json.Marshal(message)
	if err != nil {
		return apperrors.NewInternalError("failed to encode feishu message", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewTransportError("feishu", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.NewTransportError("feishu", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apperrors.NewTransportError("feishu", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return apperrors.NewTransportError("feishu", fmt.Errorf("invalid response: %w", err))
	}
	if result.Code != 0 {
		return apperrors.NewTransportError("feishu", fmt.Errorf("api error code=%d msg=%s", result.Code, result.Msg))
	}
	return nil
}

func (s *FeishuSender) buildMessage(event *Event) map[string]interface{} {
	if event.Meta != nil {
		if card, ok := event.Meta[MetaTemplateCard].(map[string]interface{}); ok && card != nil {
			return map[string]interface{}{"msg_type": "interactive", "card": card}
		}
		if event.MetaString(MetaTicketID) != "" {
			return map[string]interface{}{"msg_type": "interactive", "card": s.buildTicketCard(event)}
		}
	}
	return s.buildTextMessage(event)
}

// buildTicketCard is the fallback card used when a project's template does
// not render. It keeps the acknowledge and detail buttons intact.
func (s *FeishuSender) buildTicketCard(event *Event) map[string]interface{} {
	title := event.Title()
	severity := event.MetaString(MetaSeverity)
	if severity == "" {
		severity = "info"
	}

	colors := map[string]string{
		"critical": "red",
		"error":    "red",
		"warning":  "orange",
		"info":     "blue",
	}
	color, ok := colors[severity]
	if !ok {
		color = "blue"
	}

	elements := []interface{}{}
	if desc := event.MetaString(MetaDescription); desc != "" {
		desc = truncateRunes(desc, 500)
		elements = append(elements, map[string]interface{}{
			"tag":  "div",
			"text": map[string]interface{}{"tag": "lark_md", "content": desc},
		})
	}

	elements = append(elements, map[string]interface{}{"tag": "hr"})

	actions := []interface{}{}
	if ackURL := event.MetaString(MetaAckURL); ackURL != "" {
		actions = append(actions, map[string]interface{}{
			"tag":  "button",
			"text": map[string]interface{}{"tag": "plain_text", "content": "确认工单"},
			"type": "primary",
			"url":  ackURL,
		})
	}
	if detailURL := event.MetaString(MetaDetailURL); detailURL != "" {
		actions = append(actions, map[string]interface{}{
			"tag":  "button",
			"text": map[string]interface{}{"tag": "plain_text", "content": "查看详情"},
			"type": "default",
			"url":  detailURL,
		})
	}
	if len(actions) > 0 {
		elements = append(elements, map[string]interface{}{"tag": "action", "actions": actions})
	}

	elements = append(elements, map[string]interface{}{
		"tag": "note",
		"elements": []interface{}{map[string]interface{}{
			"tag":     "plain_text",
			"content": fmt.Sprintf("来源: %s | Ticket: %s", event.Source, event.MetaString(MetaTicketID)),
		}},
	})

	return map[string]interface{}{
		"header": map[string]interface{}{
			"title":    map[string]interface{}{"tag": "plain_text", "content": title},
			"template": color,
		},
		"elements": elements,
	}
}

func (s *FeishuSender) buildTextMessage(event *Event) map[string]interface{} {
	payloadJSON, _ := json.MarshalIndent(event.Payload, "", "  ")
	labelsJSON, _ := json.Marshal(event.Labels)
	text := fmt.Sprintf("[%s] %s\nlabels: %s\npayload:\n%s",
		event.Source, event.Type, labelsJSON, payloadJSON)
	return map[string]interface{}{
		"msg_type": "text",
		"content":  map[string]interface{}{"text": text},
	}
}

// Feishu bot signing: the timestamp and secret form the HMAC key, the
// message itself is empty.
func (s *FeishuSender) sign(timestamp string) string {
	stringToSign := timestamp + "\n" + s.secret
	mac := hmac.New(sha256.New, []byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
