package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulletops/bullet/internal/model"
	"github.com/bulletops/bullet/internal/source"
)

type fakeTicketStore struct {
	created []*model.Ticket
	saved   []*model.Ticket
	open    []*model.Ticket
}

func (f *fakeTicketStore) Create(_ context.Context, t *model.Ticket) error {
	f.created = append(f.created, t)
	return nil
}

func (f *fakeTicketStore) Save(_ context.Context, t *model.Ticket) error {
	f.saved = append(f.saved, t)
	return nil
}

func (f *fakeTicketStore) FindByProjectAndStatuses(_ context.Context, projectID string, statuses ...model.TicketStatus) ([]*model.Ticket, error) {
	var out []*model.Ticket
	for _, t := range f.open {
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

type fakeGroupStore struct {
	groups map[uuid.UUID]*model.NotificationGroup
}

func (f *fakeGroupStore) GetByID(_ context.Context, id uuid.UUID) (*model.NotificationGroup, error) {
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return nil, errors.New("not found")
}

type fakeNotifier struct {
	results  map[string]bool
	notified []*model.Ticket
}

func (f *fakeNotifier) NotifyTicket(_ context.Context, ticket *model.Ticket, _ int) map[string]bool {
	f.notified = append(f.notified, ticket)
	return f.results
}

type intakeFixture struct {
	service  *Service
	tickets  *fakeTicketStore
	notifier *fakeNotifier
	project  *model.Project
	now      time.Time
}

func newIntakeFixture(t *testing.T) *intakeFixture {
	t.Helper()

	group := &model.NotificationGroup{ID: uuid.New(), Name: "primary"}
	project := &model.Project{
		ID:                   uuid.New(),
		Name:                 "payments",
		NotificationGroupIDs: model.StringList{group.ID.String()},
		IsActive:             true,
	}

	tickets := &fakeTicketStore{}
	notifier := &fakeNotifier{results: map[string]bool{"feishu:bob": true}}
	service := NewService(tickets,
		&fakeGroupStore{groups: map[uuid.UUID]*model.NotificationGroup{group.ID: group}},
		notifier, source.NewRegistry())

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	service.SetClock(func() time.Time { return now })

	return &intakeFixture{
		service:  service,
		tickets:  tickets,
		notifier: notifier,
		project:  project,
		now:      now,
	}
}

func TestProcessCreatesAndNotifies(t *testing.T) {
	f := newIntakeFixture(t)

	payload := map[string]interface{}{
		"title":    "CPU high",
		"message":  "node-1 above 95%",
		"severity": "critical",
		"labels":   map[string]interface{}{"host": "node-1"},
	}

	result, err := f.service.Process(context.Background(), f.project, "grafana", payload)
	require.NoError(t, err)

	assert.Equal(t, "ok", result.Status)
	assert.NotEmpty(t, result.TicketID)
	assert.Equal(t, "grafana", result.Source)
	assert.Equal(t, map[string]bool{"feishu:bob": true}, result.NotificationResults)

	require.Len(t, f.tickets.created, 1)
	ticket := f.tickets.created[0]
	assert.Equal(t, model.StatusPending, ticket.Status)
	assert.Equal(t, "CPU high", ticket.Title)
	assert.Equal(t, "critical", ticket.Severity)
	assert.Equal(t, model.Labels{"host": "node-1"}, ticket.Labels)

	require.Len(t, f.notifier.notified, 1)

	// The first notification is recorded on the saved ticket.
	require.Len(t, f.tickets.saved, 1)
	assert.Equal(t, 1, ticket.NotificationCount)
	require.NotNil(t, ticket.LastNotifiedAt)
	assert.Equal(t, f.now, *ticket.LastNotifiedAt)
	assert.True(t, ticket.HasEvent(model.EventCreated))
	assert.True(t, ticket.HasEvent(model.EventNotified))

	var notified model.TicketEvent
	for _, e := range ticket.Events {
		if e.Type == model.EventNotified {
			notified = e
		}
	}
	assert.Equal(t, "primary", notified.GroupName)
	require.NotNil(t, notified.Success)
	assert.True(t, *notified.Success)
}

func TestProcessSilencedProjectSkipsNotification(t *testing.T) {
	f := newIntakeFixture(t)
	until := f.now.Add(time.Hour)
	f.project.SilencedUntil = &until

	result, err := f.service.Process(context.Background(), f.project, "grafana",
		map[string]interface{}{"title": "CPU high"})
	require.NoError(t, err)

	assert.Equal(t, "silenced", result.Status)
	assert.Empty(t, f.notifier.notified)

	require.Len(t, f.tickets.created, 1)
	ticket := f.tickets.created[0]
	assert.Equal(t, model.StatusPending, ticket.Status)
	assert.True(t, ticket.HasEvent(model.EventNotifiedSilence))
	assert.Equal(t, 0, ticket.NotificationCount)
}

func TestProcessResolvedClosesOpenTickets(t *testing.T) {
	f := newIntakeFixture(t)
	open := model.NewTicket(f.project.ID.String(), "grafana")
	otherProject := model.NewTicket(uuid.NewString(), "grafana")
	f.tickets.open = []*model.Ticket{open, otherProject}

	result, err := f.service.Process(context.Background(), f.project, "grafana",
		map[string]interface{}{"title": "CPU high", "status": "resolved"})
	require.NoError(t, err)

	assert.Equal(t, "resolved", result.Status)
	assert.Equal(t, "Resolved 1 ticket(s)", result.Message)
	assert.Empty(t, f.tickets.created)
	assert.Empty(t, f.notifier.notified)

	assert.Equal(t, model.StatusResolved, open.Status)
	require.NotNil(t, open.ResolvedAt)
	assert.Equal(t, f.now, *open.ResolvedAt)
	assert.True(t, open.HasEvent(model.EventResolved))

	assert.Equal(t, model.StatusPending, otherProject.Status)
}

func TestProcessIgnoredStatusRecordsWithoutNotifying(t *testing.T) {
	f := newIntakeFixture(t)

	// Aliyun PAI reports task success as an informational event.
	payload := map[string]interface{}{
		"content": map[string]interface{}{
			"post": map[string]interface{}{
				"zh_cn": map[string]interface{}{
					"title": "任务状态通知",
					"content": []interface{}{
						[]interface{}{
							map[string]interface{}{"tag": "text", "text": "任务名称：train-job"},
							map[string]interface{}{"tag": "text", "text": "任务状态：Succeeded"},
						},
					},
				},
			},
		},
	}

	result, err := f.service.Process(context.Background(), f.project, "aliyun_pai", payload)
	require.NoError(t, err)

	assert.Equal(t, "ignored", result.Status)
	assert.Empty(t, f.notifier.notified)
	assert.Empty(t, f.tickets.saved)

	require.Len(t, f.tickets.created, 1)
	assert.Equal(t, model.StatusIgnored, f.tickets.created[0].Status)
}

func TestProcessFallbackExtractionForUnknownSource(t *testing.T) {
	f := newIntakeFixture(t)

	result, err := f.service.Process(context.Background(), f.project, "custom",
		map[string]interface{}{"alertname": "DiskFull", "level": "warning"})
	require.NoError(t, err)

	assert.Equal(t, "ok", result.Status)
	require.Len(t, f.tickets.created, 1)
	ticket := f.tickets.created[0]
	assert.Equal(t, "DiskFull", ticket.Title)
	assert.Equal(t, "warning", ticket.Severity)
}
