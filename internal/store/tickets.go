package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bulletops/bullet/internal/model"
)

// TicketStore handles PostgreSQL operations for tickets.
type TicketStore struct {
	db *sql.DB
}

const ticketColumns = `id, project_id, source, status, escalation_level,
	payload, labels, parsed_data, title, description, severity,
	ack_token, acknowledged_at, acknowledged_by,
	last_notified_at, notification_count, events,
	created_at, updated_at, resolved_at`

// Create inserts a new ticket record.
func (s *TicketStore) Create(ctx context.Context, t *model.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.ProjectID, t.Source, t.Status, t.EscalationLevel,
		t.Payload, t.Labels, t.ParsedData, t.Title, t.Description, t.Severity,
		t.AckToken, t.AcknowledgedAt, t.AcknowledgedBy,
		t.LastNotifiedAt, t.NotificationCount, t.Events,
		t.CreatedAt, t.UpdatedAt, t.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}
	return nil
}

// GetByID retrieves a ticket by its ID.
func (s *TicketStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// Save writes the full ticket state back. The ticket is the unit of
// consistency, so a single row update covers status, timeline and counters.
func (s *TicketStore) Save(ctx context.Context, t *model.Ticket) error {
	t.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE tickets SET
			project_id = $2, source = $3, status = $4, escalation_level = $5,
			payload = $6, labels = $7, parsed_data = $8,
			title = $9, description = $10, severity = $11,
			ack_token = $12, acknowledged_at = $13, acknowledged_by = $14,
			last_notified_at = $15, notification_count = $16, events = $17,
			created_at = $18, updated_at = $19, resolved_at = $20
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		t.ID, t.ProjectID, t.Source, t.Status, t.EscalationLevel,
		t.Payload, t.Labels, t.ParsedData, t.Title, t.Description, t.Severity,
		t.AckToken, t.AcknowledgedAt, t.AcknowledgedBy,
		t.LastNotifiedAt, t.NotificationCount, t.Events,
		t.CreatedAt, t.UpdatedAt, t.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByProjectAndStatuses retrieves a project's tickets in the given
// statuses, oldest first. The escalation sweep and the auto-close path both
// select through this.
func (s *TicketStore) FindByProjectAndStatuses(ctx context.Context, projectID string, statuses ...model.TicketStatus) ([]*model.Ticket, error) {
	vals := make([]string, len(statuses))
	for i, st := range statuses {
		vals[i] = string(st)
	}
	query := `
		SELECT ` + ticketColumns + ` FROM tickets
		WHERE project_id = $1 AND status = ANY($2)
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID, pq.Array(vals))
	if err != nil {
		return nil, fmt.Errorf("failed to query project tickets by status: %w", err)
	}
	defer rows.Close()
	return s.scanAll(rows)
}

// ListByProject retrieves the most recent tickets for a project.
func (s *TicketStore) ListByProject(ctx context.Context, projectID string, limit int) ([]*model.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()
	return s.scanAll(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *TicketStore) scanOne(row rowScanner) (*model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.Source, &t.Status, &t.EscalationLevel,
		&t.Payload, &t.Labels, &t.ParsedData, &t.Title, &t.Description, &t.Severity,
		&t.AckToken, &t.AcknowledgedAt, &t.AcknowledgedBy,
		&t.LastNotifiedAt, &t.NotificationCount, &t.Events,
		&t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}
	return &t, nil
}

func (s *TicketStore) scanAll(rows *sql.Rows) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	for rows.Next() {
		t, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return tickets, nil
}
