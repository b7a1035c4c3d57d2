// Package template renders notification messages from Go text/template
// bodies. The built-in bodies live with the model; this package builds the
// render context and executes channel-specific templates.
package template

import (
	"fmt"
	"time"

	"github.com/bulletops/bullet/internal/model"
)

// TicketContext is the ticket view exposed to templates.
type TicketContext struct {
	ID                string
	Title             string
	Description       string
	Severity          string
	Source            string
	Status            string
	Labels            map[string]string
	EscalationLevel   int
	NotificationCount int
	CreatedAt         string
}

// ProjectContext is the project view exposed to templates.
type ProjectContext struct {
	ID          string
	Name        string
	Description string
}

// Context carries everything a notification template may reference.
type Context struct {
	Ticket  TicketContext
	Payload map[string]interface{}
	Parsed  map[string]interface{}
	Source  string
	Project *ProjectContext

	AckURL    string
	DetailURL string

	IsEscalated        bool
	IsRepeated         bool
	NotificationCount  int
	NotificationLabel  string
	IsAckNotification  bool
	AcknowledgedByName string
}

// Options select which kind of notification a context describes.
type Options struct {
	IsEscalated bool
	IsRepeated  bool

	// NotificationCount overrides the 1-based count shown to recipients.
	// When nil the ticket's stored count plus one is used, so a context
	// built before dispatch already names the notification being sent.
	NotificationCount *int

	IsAckNotification  bool
	AcknowledgedByName string
}

// BuildContext assembles the render context for a ticket. baseURL must not
// end with a slash.
func BuildContext(ticket *model.Ticket, project *model.Project, baseURL string, opts Options) Context {
	count := ticket.NotificationCount + 1
	if opts.NotificationCount != nil {
		count = *opts.NotificationCount
	}

	label := ""
	switch {
	case opts.IsAckNotification && opts.AcknowledgedByName != "":
		label = fmt.Sprintf("已确认 by %s", opts.AcknowledgedByName)
	case opts.IsAckNotification:
		label = "已确认"
	case opts.IsEscalated:
		label = fmt.Sprintf("已升级到 L%d", ticket.EscalationLevel)
	case opts.IsRepeated || count > 1:
		label = fmt.Sprintf("第%d次通知", count)
	}

	createdAt := ""
	if !ticket.CreatedAt.IsZero() {
		createdAt = ticket.CreatedAt.UTC().Format(time.RFC3339)
	}

	ctx := Context{
		Ticket: TicketContext{
			ID:                ticket.ID.String(),
			Title:             ticket.Title,
			Description:       ticket.Description,
			Severity:          ticket.Severity,
			Source:            ticket.Source,
			Status:            string(ticket.Status),
			Labels:            ticket.Labels,
			EscalationLevel:   ticket.EscalationLevel,
			NotificationCount: count,
			CreatedAt:         createdAt,
		},
		Payload:            ticket.Payload,
		Parsed:             ticket.ParsedData,
		Source:             ticket.Source,
		AckURL:             fmt.Sprintf("%s/ack/%s?token=%s", baseURL, ticket.ID, ticket.AckToken),
		DetailURL:          fmt.Sprintf("%s/tickets/%s", baseURL, ticket.ID),
		IsEscalated:        opts.IsEscalated,
		IsRepeated:         opts.IsRepeated,
		NotificationCount:  count,
		NotificationLabel:  label,
		IsAckNotification:  opts.IsAckNotification,
		AcknowledgedByName: opts.AcknowledgedByName,
	}
	if ctx.Payload == nil {
		ctx.Payload = map[string]interface{}{}
	}
	if ctx.Parsed == nil {
		ctx.Parsed = map[string]interface{}{}
	}

	if project != nil {
		ctx.Project = &ProjectContext{
			ID:          project.ID.String(),
			Name:        project.Name,
			Description: project.Description,
		}
	}
	return ctx
}
