// Package intake turns normalized webhook payloads into tickets and drives
// the first notification. Recovery payloads auto-resolve open tickets
// instead of creating new ones.
package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bulletops/bullet/internal/model"
	"github.com/bulletops/bullet/internal/source"
	"github.com/bulletops/bullet/internal/telemetry"
)

// TicketWriter persists tickets during intake.
type TicketWriter interface {
	Create(ctx context.Context, t *model.Ticket) error
	Save(ctx context.Context, t *model.Ticket) error
	FindByProjectAndStatuses(ctx context.Context, projectID string, statuses ...model.TicketStatus) ([]*model.Ticket, error)
}

// GroupGetter resolves the first group's name for the timeline.
type GroupGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.NotificationGroup, error)
}

// Notifier sends the initial notification.
type Notifier interface {
	NotifyTicket(ctx context.Context, ticket *model.Ticket, escalationLevel int) map[string]bool
}

// Result describes the outcome of one intake.
type Result struct {
	Status              string          `json:"status"`
	Message             string          `json:"message"`
	TicketID            string          `json:"ticket_id,omitempty"`
	Source              string          `json:"source,omitempty"`
	NotificationResults map[string]bool `json:"notification_results,omitempty"`
}

// Service processes inbound alerts for validated projects.
type Service struct {
	tickets  TicketWriter
	groups   GroupGetter
	notifier Notifier
	registry *source.Registry
	now      func() time.Time
}

// NewService creates an intake service.
func NewService(tickets TicketWriter, groups GroupGetter, notifier Notifier, registry *source.Registry) *Service {
	return &Service{
		tickets:  tickets,
		groups:   groups,
		notifier: notifier,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Process handles one webhook payload for a project the caller already
// validated. The project may be silenced but must be active.
func (s *Service) Process(ctx context.Context, project *model.Project, sourceName string, payload map[string]interface{}) (*Result, error) {
	log := telemetry.LogFromContext(ctx).WithField("project_id", project.ID.String())

	ext := s.registry.Extract(sourceName, payload)

	if ext.Status == source.StatusResolved {
		return s.resolveOpenTickets(ctx, project, sourceName)
	}

	ticket := model.NewTicket(project.ID.String(), sourceName)
	ticket.Payload = payload
	ticket.Labels = ext.Labels
	ticket.ParsedData = ext.ParsedData
	ticket.Title = ext.Title
	ticket.Description = ext.Description
	ticket.Severity = ext.Severity
	ticket.AddEvent(model.EventCreated, 0, "", nil, fmt.Sprintf("来源: %s", sourceName))

	// Informational payloads are recorded but never notified.
	if ext.Status == source.StatusIgnored {
		ticket.Status = model.StatusIgnored
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return nil, err
		}
		log.WithField("ticket_id", ticket.ID.String()).Info("Created ignored ticket")
		return &Result{
			Status:   "ignored",
			Message:  "Ticket recorded without notification",
			TicketID: ticket.ID.String(),
			Source:   sourceName,
		}, nil
	}

	if project.IsSilenced(s.now()) {
		ticket.AddEvent(model.EventNotifiedSilence, 1, "", nil, "项目已静默，跳过通知")
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return nil, err
		}
		log.WithField("ticket_id", ticket.ID.String()).Info("Created ticket while project silenced")
		return &Result{
			Status:   "silenced",
			Message:  "Ticket created but notifications silenced",
			TicketID: ticket.ID.String(),
			Source:   sourceName,
		}, nil
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	log.WithField("ticket_id", ticket.ID.String()).Info("Created ticket")

	groupName := s.firstGroupName(ctx, project)
	results := s.notifier.NotifyTicket(ctx, ticket, 1)

	success := false
	for _, ok := range results {
		if ok {
			success = true
			break
		}
	}
	details := "无通知组配置"
	if len(results) > 0 {
		details = fmt.Sprintf("通知结果: %v", results)
	}
	ticket.AddEvent(model.EventNotified, 1, groupName, model.Bool(success), details)

	now := s.now()
	ticket.LastNotifiedAt = &now
	ticket.NotificationCount = 1
	if err := s.tickets.Save(ctx, ticket); err != nil {
		return nil, err
	}

	return &Result{
		Status:              "ok",
		Message:             "Ticket created",
		TicketID:            ticket.ID.String(),
		Source:              sourceName,
		NotificationResults: results,
	}, nil
}

// resolveOpenTickets closes the project's pending tickets when a recovery
// payload arrives.
func (s *Service) resolveOpenTickets(ctx context.Context, project *model.Project, sourceName string) (*Result, error) {
	log := telemetry.LogFromContext(ctx).WithField("project_id", project.ID.String())

	pending, err := s.tickets.FindByProjectAndStatuses(ctx, project.ID.String(), model.StatusPending)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, t := range pending {
		t.Status = model.StatusResolved
		t.ResolvedAt = &now
		t.AddEvent(model.EventResolved, 0, "", nil, "自动解决（收到 resolved 状态）")
		if err := s.tickets.Save(ctx, t); err != nil {
			return nil, err
		}
	}
	if len(pending) > 0 {
		log.WithField("count", len(pending)).Info("Auto-resolved pending tickets")
	}

	return &Result{
		Status:  "resolved",
		Message: fmt.Sprintf("Resolved %d ticket(s)", len(pending)),
		Source:  sourceName,
	}, nil
}

func (s *Service) firstGroupName(ctx context.Context, project *model.Project) string {
	groupID := project.GroupIDAtLevel(1)
	if groupID == "" {
		return ""
	}
	id, err := uuid.Parse(groupID)
	if err != nil {
		return ""
	}
	group, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return ""
	}
	return group.Name
}
