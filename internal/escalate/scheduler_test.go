package escalate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulletops/bullet/internal/model"
	"github.com/bulletops/bullet/internal/notify"
)

type fakeProjectLister struct {
	projects []*model.Project
}

func (f *fakeProjectLister) FindEnabledActive(context.Context) ([]*model.Project, error) {
	return f.projects, nil
}

type fakeTickets struct {
	tickets []*model.Ticket
	saved   []*model.Ticket
}

func (f *fakeTickets) FindByProjectAndStatuses(_ context.Context, projectID string, statuses ...model.TicketStatus) ([]*model.Ticket, error) {
	var out []*model.Ticket
	for _, t := range f.tickets {
		if t.ProjectID != projectID {
			continue
		}
		for _, st := range statuses {
			if t.Status == st {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTickets) Save(_ context.Context, t *model.Ticket) error {
	f.saved = append(f.saved, t)
	return nil
}

type fakeGroupGetter struct {
	groups map[uuid.UUID]*model.NotificationGroup
}

func (f *fakeGroupGetter) GetByID(_ context.Context, id uuid.UUID) (*model.NotificationGroup, error) {
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return nil, errors.New("not found")
}

type sentNotification struct {
	group *model.NotificationGroup
	opts  notify.Options
	level int
}

type fakeNotifier struct {
	sent []sentNotification
}

func (f *fakeNotifier) TemplateForProject(context.Context, *model.Project) *model.NotificationTemplate {
	return &model.NotificationTemplate{Name: model.DefaultTemplateName}
}

func (f *fakeNotifier) SendToGroup(_ context.Context, ticket *model.Ticket, group *model.NotificationGroup,
	_ *model.NotificationTemplate, _ *model.Project, opts notify.Options) map[string]bool {
	f.sent = append(f.sent, sentNotification{group: group, opts: opts, level: ticket.EscalationLevel})
	return map[string]bool{"feishu:bob": true}
}

type sweepFixture struct {
	scheduler *Scheduler
	tickets   *fakeTickets
	notifier  *fakeNotifier
	project   *model.Project
	group1    *model.NotificationGroup
	group2    *model.NotificationGroup
	now       time.Time
}

// newSweepFixture builds a project with a two-level escalation path, a 30
// minute timeout and no repeats unless a test configures them.
func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()

	group1 := &model.NotificationGroup{ID: uuid.New(), Name: "primary"}
	group2 := &model.NotificationGroup{ID: uuid.New(), Name: "oncall"}

	project := &model.Project{
		ID:                   uuid.New(),
		Name:                 "payments",
		NotificationGroupIDs: model.StringList{group1.ID.String(), group2.ID.String()},
		EscalationConfig:     model.EscalationConfig{Enabled: true, TimeoutMinutes: 30},
		IsActive:             true,
	}

	tickets := &fakeTickets{}
	notifier := &fakeNotifier{}
	scheduler := NewScheduler(
		&fakeProjectLister{projects: []*model.Project{project}},
		tickets,
		&fakeGroupGetter{groups: map[uuid.UUID]*model.NotificationGroup{
			group1.ID: group1,
			group2.ID: group2,
		}},
		notifier,
		time.Second,
	)

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	scheduler.SetClock(func() time.Time { return now })

	return &sweepFixture{
		scheduler: scheduler,
		tickets:   tickets,
		notifier:  notifier,
		project:   project,
		group1:    group1,
		group2:    group2,
		now:       now,
	}
}

func (f *sweepFixture) addTicket(age time.Duration, severity string) *model.Ticket {
	ticket := model.NewTicket(f.project.ID.String(), "grafana")
	ticket.Severity = severity
	ticket.CreatedAt = f.now.Add(-age)
	f.tickets.tickets = append(f.tickets.tickets, ticket)
	return ticket
}

func TestSweepEscalatesAfterTimeout(t *testing.T) {
	f := newSweepFixture(t)
	ticket := f.addTicket(31*time.Minute, "critical")

	f.scheduler.Sweep(context.Background())

	assert.Equal(t, model.StatusEscalated, ticket.Status)
	assert.Equal(t, 2, ticket.EscalationLevel)
	assert.Equal(t, 1, ticket.NotificationCount)
	require.NotNil(t, ticket.LastNotifiedAt)
	assert.Equal(t, f.now, *ticket.LastNotifiedAt)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, f.group2, f.notifier.sent[0].group)
	assert.True(t, f.notifier.sent[0].opts.IsEscalated)
	// Level was raised before dispatch so templates see the new level.
	assert.Equal(t, 2, f.notifier.sent[0].level)

	assert.True(t, ticket.HasEvent(model.EventEscalated))
	require.Len(t, f.tickets.saved, 1)
}

func TestSweepDoesNothingBeforeTimeout(t *testing.T) {
	f := newSweepFixture(t)
	ticket := f.addTicket(10*time.Minute, "critical")

	f.scheduler.Sweep(context.Background())

	assert.Equal(t, model.StatusPending, ticket.Status)
	assert.Empty(t, f.notifier.sent)
	assert.Empty(t, f.tickets.saved)
}

func TestSweepRepeatsBeforeTimeout(t *testing.T) {
	f := newSweepFixture(t)
	f.group1.RepeatInterval = 10
	ticket := f.addTicket(15*time.Minute, "critical")

	f.scheduler.Sweep(context.Background())

	// Repeat wins: still level 1, pending, notified again.
	assert.Equal(t, model.StatusPending, ticket.Status)
	assert.Equal(t, 1, ticket.EscalationLevel)
	assert.Equal(t, 1, ticket.NotificationCount)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, f.group1, f.notifier.sent[0].group)
	assert.True(t, f.notifier.sent[0].opts.IsRepeated)
	assert.True(t, ticket.HasEvent(model.EventRepeated))
}

func TestSweepRepeatNotDueYet(t *testing.T) {
	f := newSweepFixture(t)
	f.group1.RepeatInterval = 10
	f.addTicket(5*time.Minute, "critical")

	f.scheduler.Sweep(context.Background())

	assert.Empty(t, f.notifier.sent)
}

func TestSweepRepeatsAtMaxLevel(t *testing.T) {
	f := newSweepFixture(t)
	f.group2.RepeatInterval = 10
	ticket := f.addTicket(2*time.Hour, "critical")
	ticket.Status = model.StatusEscalated
	ticket.EscalationLevel = 2

	f.scheduler.Sweep(context.Background())

	assert.Equal(t, 2, ticket.EscalationLevel)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, f.group2, f.notifier.sent[0].group)
	assert.True(t, f.notifier.sent[0].opts.IsRepeated)
}

func TestSweepMaxLevelWithoutRepeatRecordsOnce(t *testing.T) {
	f := newSweepFixture(t)
	ticket := f.addTicket(2*time.Hour, "critical")
	ticket.Status = model.StatusEscalated
	ticket.EscalationLevel = 2

	f.scheduler.Sweep(context.Background())
	f.scheduler.Sweep(context.Background())

	assert.Empty(t, f.notifier.sent)

	count := 0
	for _, e := range ticket.Events {
		if e.Type == model.EventMaxLevelReached {
			count++
		}
	}
	assert.Equal(t, 1, count)
	require.Len(t, f.tickets.saved, 1)
}

func TestSweepIgnoresNonCriticalTickets(t *testing.T) {
	f := newSweepFixture(t)
	ticket := f.addTicket(2*time.Hour, "warning")

	f.scheduler.Sweep(context.Background())

	assert.Equal(t, model.StatusPending, ticket.Status)
	assert.Equal(t, 1, ticket.EscalationLevel)
	assert.Empty(t, f.notifier.sent)
}

func TestSweepSkipsSilencedProjects(t *testing.T) {
	f := newSweepFixture(t)
	until := f.now.Add(time.Hour)
	f.project.SilencedUntil = &until
	f.addTicket(2*time.Hour, "critical")

	f.scheduler.Sweep(context.Background())

	assert.Empty(t, f.notifier.sent)
}

func TestSweepMeasuresFromLastNotification(t *testing.T) {
	f := newSweepFixture(t)
	ticket := f.addTicket(2*time.Hour, "critical")
	lastNotified := f.now.Add(-5 * time.Minute)
	ticket.LastNotifiedAt = &lastNotified

	f.scheduler.Sweep(context.Background())

	// Recently notified, nothing due despite the old creation time.
	assert.Empty(t, f.notifier.sent)
	assert.Equal(t, model.StatusPending, ticket.Status)
}

func TestStartStopIdempotent(t *testing.T) {
	f := newSweepFixture(t)

	f.scheduler.Start()
	f.scheduler.Start()
	f.scheduler.Stop()
	f.scheduler.Stop()
}
