package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bulletops/bullet/internal/model"
)

// ProjectStore handles PostgreSQL operations for projects.
type ProjectStore struct {
	db *sql.DB
}

const projectColumns = `id, namespace_id, name, description,
	notification_group_ids, notification_template_id, escalation_config,
	is_active, notify_on_ack, silenced_until, created_at, updated_at`

// Create inserts a new project record.
func (s *ProjectStore) Create(ctx context.Context, p *model.Project) error {
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.NamespaceID, p.Name, p.Description,
		p.NotificationGroupIDs, p.NotificationTemplateID, p.EscalationConfig,
		p.IsActive, p.NotifyOnAck, p.SilencedUntil, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// GetByID retrieves a project by its ID.
func (s *ProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// FindEnabledActive retrieves active projects with escalation enabled.
// The escalation sweep iterates over this set.
func (s *ProjectStore) FindEnabledActive(ctx context.Context) ([]*model.Project, error) {
	query := `
		SELECT ` + projectColumns + ` FROM projects
		WHERE is_active AND (escalation_config->>'enabled')::boolean
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation-enabled projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

func (s *ProjectStore) scanOne(row rowScanner) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID, &p.NamespaceID, &p.Name, &p.Description,
		&p.NotificationGroupIDs, &p.NotificationTemplateID, &p.EscalationConfig,
		&p.IsActive, &p.NotifyOnAck, &p.SilencedUntil, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return &p, nil
}
