package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/bulletops/bullet/internal/errors"
	"github.com/bulletops/bullet/internal/telemetry"
)

const (
	twilioAPIBase = "https://api.twilio.com/2010-04-01"
	twilioTimeout = 30 * time.Second
	smsMaxLength  = 155
)

// TwilioSender delivers SMS through the Twilio messages API, fanning out to
// each recipient number. A send succeeds when at least one message goes out.
type TwilioSender struct {
	accountSID string
	authToken  string
	fromNumber string
	to         []string

	// Message, when set, replaces the default short rendering.
	Message string

	// APIBase defaults to the public Twilio endpoint.
	APIBase string

	client *http.Client
}

// NewTwilioSender creates a sender for a fixed recipient list.
func NewTwilioSender(accountSID, authToken, fromNumber string, to []string) *TwilioSender {
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		to:         to,
		APIBase:    twilioAPIBase,
		client:     &http.Client{Timeout: twilioTimeout},
	}
}

func (s *TwilioSender) Name() string { return "twilio_sms" }

// Send delivers the message to every recipient number.
func (s *TwilioSender) Send(ctx context.Context, event *Event) error {
	if s.accountSID == "" || s.authToken == "" || s.fromNumber == "" {
		return apperrors.NewTransportError("twilio_sms", errors.New("twilio credentials are not configured"))
	}
	if len(s.to) == 0 {
		return apperrors.NewTransportError("twilio_sms", errors.New("no recipient numbers"))
	}

	body := s.Message
	if body == "" {
		body = s.formatMessage(event)
	}

	log := telemetry.LogFromContext(ctx)
	sent := 0
	var lastErr error
	for _, number := range s.to {
		if err := s.sendOne(ctx, number, body); err != nil {
			log.WithField("to", number).WithField("error", err.Error()).Error("Failed to send SMS")
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		return apperrors.NewTransportError("twilio_sms", lastErr)
	}
	return nil
}

func (s *TwilioSender) sendOne(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.APIBase, s.accountSID)
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.fromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// formatMessage builds the short fallback body, truncated to fit one SMS.
func (s *TwilioSender) formatMessage(event *Event) string {
	parts := []string{fmt.Sprintf("[%s] %s", event.Source, event.Title())}
	if len(event.Labels) > 0 {
		labels, _ := json.Marshal(event.Labels)
		parts = append(parts, string(labels))
	}
	msg := strings.Join(parts, " | ")
	if utf8.RuneCountInString(msg) > smsMaxLength {
		msg = truncateRunes(msg, smsMaxLength-3) + "..."
	}
	return msg
}
