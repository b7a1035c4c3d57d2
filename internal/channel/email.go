package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/bulletops/bullet/internal/errors"
)

const (
	resendAPIURL  = "https://api.resend.com/emails"
	resendTimeout = 30 * time.Second
)

// ResendSender delivers email through the Resend REST API. One send covers
// all recipients in a single API call.
type ResendSender struct {
	apiKey    string
	fromEmail string
	to        []string

	// Subject and HTMLBody form one rendered artifact. Both must be set to
	// replace the default rendering; a half-rendered pair is discarded.
	Subject  string
	HTMLBody string

	// APIURL defaults to the public Resend endpoint.
	APIURL string

	client *http.Client
}

// NewResendSender creates a sender for a fixed recipient list.
func NewResendSender(apiKey, fromEmail string, to []string) *ResendSender {
	return &ResendSender{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		to:        to,
		APIURL:    resendAPIURL,
		client:    &http.Client{Timeout: resendTimeout},
	}
}

func (s *ResendSender) Name() string { return "resend_email" }

// Send posts one email to all recipients.
func (s *ResendSender) Send(ctx context.Context, event *Event) error {
	if s.apiKey == "" || s.fromEmail == "" {
		return apperrors.NewTransportError("resend_email", errors.New("resend credentials are not configured"))
	}
	if len(s.to) == 0 {
		return apperrors.NewTransportError("resend_email", errors.New("no recipient addresses"))
	}

	subject := s.Subject
	htmlBody := s.HTMLBody
	if subject == "" || htmlBody == "" {
		subject = fmt.Sprintf("[%s] %s", event.Source, event.Title())
		payloadJSON, _ := json.MarshalIndent(event.Payload, "", "  ")
		htmlBody = fmt.Sprintf("<h2>%s</h2><pre>%s</pre>", event.Title(), payloadJSON)
	}

	payload := map[string]interface{}{
		"from":    s.fromEmail,
		"to":      s.to,
		"subject": subject,
		"html":    htmlBody,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewInternalError("failed to encode resend payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.APIURL, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewTransportError("resend_email", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.NewTransportError("resend_email", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.NewTransportError("resend_email",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody))
	}
	return nil
}
