package store

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulletops/bullet/internal/model"
)

var ticketColumnNames = []string{
	"id", "project_id", "source", "status", "escalation_level",
	"payload", "labels", "parsed_data", "title", "description", "severity",
	"ack_token", "acknowledged_at", "acknowledged_by",
	"last_notified_at", "notification_count", "events",
	"created_at", "updated_at", "resolved_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func ticketRow(t *model.Ticket) []driverValue {
	return []driverValue{
		t.ID.String(), t.ProjectID, t.Source, string(t.Status), t.EscalationLevel,
		[]byte(`{}`), []byte(`{}`), []byte(`{}`), t.Title, t.Description, t.Severity,
		t.AckToken, t.AcknowledgedAt, t.AcknowledgedBy,
		t.LastNotifiedAt, t.NotificationCount, []byte(`[]`),
		t.CreatedAt, t.UpdatedAt, t.ResolvedAt,
	}
}

type driverValue = driver.Value

func TestTicketCreate(t *testing.T) {
	st, mock := newMockStore(t)
	ticket := model.NewTicket(uuid.NewString(), "grafana")

	mock.ExpectExec("(?s)INSERT INTO tickets").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.Tickets.Create(context.Background(), ticket)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketGetByID(t *testing.T) {
	st, mock := newMockStore(t)
	ticket := model.NewTicket(uuid.NewString(), "grafana")
	ticket.Title = "CPU high"

	mock.ExpectQuery("(?s)SELECT .+ FROM tickets WHERE id").
		WithArgs(ticket.ID).
		WillReturnRows(sqlmock.NewRows(ticketColumnNames).AddRow(ticketRow(ticket)...))

	got, err := st.Tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
	assert.Equal(t, "CPU high", got.Title)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketGetByIDNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("(?s)SELECT .+ FROM tickets WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(ticketColumnNames))

	_, err := st.Tickets.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketSave(t *testing.T) {
	st, mock := newMockStore(t)
	ticket := model.NewTicket(uuid.NewString(), "grafana")
	before := ticket.UpdatedAt

	mock.ExpectExec("(?s)UPDATE tickets SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	time.Sleep(time.Millisecond)
	err := st.Tickets.Save(context.Background(), ticket)
	require.NoError(t, err)
	assert.True(t, ticket.UpdatedAt.After(before))
}

func TestTicketSaveMissingRow(t *testing.T) {
	st, mock := newMockStore(t)
	ticket := model.NewTicket(uuid.NewString(), "grafana")

	mock.ExpectExec("(?s)UPDATE tickets SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.Tickets.Save(context.Background(), ticket)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketFindByProjectAndStatuses(t *testing.T) {
	st, mock := newMockStore(t)
	projectID := uuid.NewString()
	first := model.NewTicket(projectID, "grafana")
	second := model.NewTicket(projectID, "grafana")

	mock.ExpectQuery("(?s)SELECT .+ FROM tickets.+WHERE project_id = .1 AND status = ANY").
		WithArgs(projectID, pq.Array([]string{"pending", "escalated"})).
		WillReturnRows(sqlmock.NewRows(ticketColumnNames).
			AddRow(ticketRow(first)...).
			AddRow(ticketRow(second)...))

	got, err := st.Tickets.FindByProjectAndStatuses(context.Background(), projectID,
		model.StatusPending, model.StatusEscalated)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketListByProjectDefaultLimit(t *testing.T) {
	st, mock := newMockStore(t)
	projectID := uuid.NewString()

	mock.ExpectQuery("(?s)SELECT .+ FROM tickets WHERE project_id = .1 ORDER BY created_at DESC LIMIT").
		WithArgs(projectID, 50).
		WillReturnRows(sqlmock.NewRows(ticketColumnNames))

	got, err := st.Tickets.ListByProject(context.Background(), projectID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
