// Package escalate runs the periodic sweep that repeats and escalates
// unacknowledged tickets according to each project's escalation path.
package escalate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bulletops/bullet/internal/model"
	"github.com/bulletops/bullet/internal/notify"
	"github.com/bulletops/bullet/internal/telemetry"
)

// ProjectLister provides the projects the sweep iterates over.
type ProjectLister interface {
	FindEnabledActive(ctx context.Context) ([]*model.Project, error)
}

// TicketSweeper provides the open tickets of one project and persists
// sweep outcomes.
type TicketSweeper interface {
	FindByProjectAndStatuses(ctx context.Context, projectID string, statuses ...model.TicketStatus) ([]*model.Ticket, error)
	Save(ctx context.Context, t *model.Ticket) error
}

// GroupGetter resolves notification groups on the escalation path.
type GroupGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.NotificationGroup, error)
}

// Notifier delivers repeat and escalation notifications.
type Notifier interface {
	TemplateForProject(ctx context.Context, project *model.Project) *model.NotificationTemplate
	SendToGroup(ctx context.Context, ticket *model.Ticket, group *model.NotificationGroup,
		tpl *model.NotificationTemplate, project *model.Project, opts notify.Options) map[string]bool
}

// Scheduler periodically sweeps open tickets. One sweep runs at a time.
type Scheduler struct {
	projects ProjectLister
	tickets  TicketSweeper
	groups   GroupGetter
	notifier Notifier

	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler sweeping at the given interval.
func NewScheduler(projects ProjectLister, tickets TicketSweeper, groups GroupGetter,
	notifier Notifier, interval time.Duration) *Scheduler {
	return &Scheduler{
		projects: projects,
		tickets:  tickets,
		groups:   groups,
		notifier: notifier,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Test hook.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start launches the sweep loop. Starting twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop()

	telemetry.GetGlobalLogger().
		WithField("interval", s.interval.String()).
		Info("Escalation scheduler started")
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	telemetry.GetGlobalLogger().Info("Escalation scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx := telemetry.WithCorrelationID(context.Background(), telemetry.NewCorrelationID())
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one escalation pass over all eligible projects.
func (s *Scheduler) Sweep(ctx context.Context) {
	log := telemetry.LogFromContext(ctx)
	log.Debug("Running escalation check")

	projects, err := s.projects.FindEnabledActive(ctx)
	if err != nil {
		log.WithField("error", err.Error()).Error("Failed to load projects for escalation check")
		return
	}

	now := s.now()
	for _, project := range projects {
		if project.IsSilenced(now) {
			log.WithField("project_id", project.ID.String()).Debug("Project is silenced, skipping")
			continue
		}
		s.sweepProject(ctx, project, now)
	}
}

func (s *Scheduler) sweepProject(ctx context.Context, project *model.Project, now time.Time) {
	log := telemetry.LogFromContext(ctx)

	tickets, err := s.tickets.FindByProjectAndStatuses(ctx, project.ID.String(),
		model.StatusPending, model.StatusEscalated)
	if err != nil {
		log.WithField("project_id", project.ID.String()).
			WithField("error", err.Error()).
			Error("Failed to load tickets for escalation check")
		return
	}

	for _, ticket := range tickets {
		s.processTicket(ctx, ticket, project, now)
	}
}

// processTicket applies the repeat-then-escalate decision to one ticket.
// A panic while handling one ticket must not break the rest of the sweep.
func (s *Scheduler) processTicket(ctx context.Context, ticket *model.Ticket, project *model.Project, now time.Time) {
	log := telemetry.LogFromContext(ctx).WithField("ticket_id", ticket.ID.String())
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprintf("%v", r)).Error("Ticket escalation check panicked")
		}
	}()

	if !ticket.CanEscalate() {
		log.WithField("severity", ticket.Severity).Debug("Ticket severity does not qualify for escalation")
		return
	}

	currentGroupID := project.GroupIDAtLevel(ticket.EscalationLevel)
	if currentGroupID == "" {
		return
	}
	currentGroup := s.groupByID(ctx, currentGroupID)
	if currentGroup == nil {
		log.WithField("group_id", currentGroupID).Warn("Current notification group not found")
		return
	}

	since := ticket.CreatedAt
	if ticket.LastNotifiedAt != nil {
		since = *ticket.LastNotifiedAt
	}
	elapsed := now.Sub(since)
	timeout := project.EscalationConfig.Timeout()

	// Repeat wins over escalation while the timeout has not elapsed.
	if currentGroup.HasRepeat() && elapsed < timeout {
		if elapsed >= currentGroup.RepeatEvery() {
			s.repeatNotification(ctx, ticket, currentGroup, project)
		}
		return
	}

	if elapsed < timeout {
		return
	}

	maxLevel := project.MaxLevel()
	if ticket.EscalationLevel >= maxLevel {
		if currentGroup.HasRepeat() {
			if elapsed >= currentGroup.RepeatEvery() {
				s.repeatNotification(ctx, ticket, currentGroup, project)
			}
		} else if !ticket.HasEvent(model.EventMaxLevelReached) {
			ticket.AddEvent(model.EventMaxLevelReached, ticket.EscalationLevel, currentGroup.Name,
				nil, "已到达最高级别，无更多通知组")
			if err := s.tickets.Save(ctx, ticket); err != nil {
				log.WithField("error", err.Error()).Error("Failed to record max level event")
			}
		}
		return
	}

	nextLevel := ticket.EscalationLevel + 1
	nextGroupID := project.GroupIDAtLevel(nextLevel)
	if nextGroupID == "" {
		return
	}
	nextGroup := s.groupByID(ctx, nextGroupID)
	if nextGroup == nil {
		log.WithField("group_id", nextGroupID).WithField("level", nextLevel).
			Warn("Next notification group not found")
		return
	}

	s.escalateTicket(ctx, ticket, nextLevel, nextGroup, project)
}

func (s *Scheduler) repeatNotification(ctx context.Context, ticket *model.Ticket, group *model.NotificationGroup, project *model.Project) {
	log := telemetry.LogFromContext(ctx).WithField("ticket_id", ticket.ID.String())
	log.WithField("group", group.Name).Info("Repeating notification")

	tpl := s.notifier.TemplateForProject(ctx, project)
	results := s.notifier.SendToGroup(ctx, ticket, group, tpl, project, notify.Options{IsRepeated: true})

	success := anySucceeded(results)
	details := "无渠道配置"
	if len(results) > 0 {
		details = fmt.Sprintf("重复通知结果: %v", results)
	}
	ticket.AddEvent(model.EventRepeated, ticket.EscalationLevel, group.Name, model.Bool(success), details)

	now := s.now()
	ticket.LastNotifiedAt = &now
	ticket.NotificationCount++
	if err := s.tickets.Save(ctx, ticket); err != nil {
		log.WithField("error", err.Error()).Error("Failed to persist repeat notification")
		return
	}
	log.WithField("results", fmt.Sprintf("%v", results)).Info("Repeat notification sent")
}

// escalateTicket raises the level before dispatch so templates render the
// new level, then persists after dispatch. A crash in between re-delivers
// rather than losing the notification.
func (s *Scheduler) escalateTicket(ctx context.Context, ticket *model.Ticket, newLevel int, group *model.NotificationGroup, project *model.Project) {
	log := telemetry.LogFromContext(ctx).WithField("ticket_id", ticket.ID.String())
	log.WithField("level", newLevel).WithField("group", group.Name).Info("Escalating ticket")

	ticket.Status = model.StatusEscalated
	ticket.EscalationLevel = newLevel

	tpl := s.notifier.TemplateForProject(ctx, project)
	results := s.notifier.SendToGroup(ctx, ticket, group, tpl, project, notify.Options{IsEscalated: true})

	success := anySucceeded(results)
	details := "无渠道配置"
	if len(results) > 0 {
		details = fmt.Sprintf("升级通知结果: %v", results)
	}
	ticket.AddEvent(model.EventEscalated, newLevel, group.Name, model.Bool(success), details)

	now := s.now()
	ticket.LastNotifiedAt = &now
	ticket.NotificationCount++
	if err := s.tickets.Save(ctx, ticket); err != nil {
		log.WithField("error", err.Error()).Error("Failed to persist escalation")
		return
	}
	log.WithField("level", newLevel).WithField("results", fmt.Sprintf("%v", results)).Info("Ticket escalated")
}

func (s *Scheduler) groupByID(ctx context.Context, groupID string) *model.NotificationGroup {
	id, err := uuid.Parse(groupID)
	if err != nil {
		return nil
	}
	group, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil
	}
	return group
}

func anySucceeded(results map[string]bool) bool {
	for _, ok := range results {
		if ok {
			return true
		}
	}
	return false
}
