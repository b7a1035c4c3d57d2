package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bulletops/bullet/internal/model"
)

// GroupStore handles PostgreSQL operations for notification groups.
type GroupStore struct {
	db *sql.DB
}

const groupColumns = `id, name, description, repeat_interval, channel_configs, created_at, updated_at`

// Create inserts a new notification group record.
func (s *GroupStore) Create(ctx context.Context, g *model.NotificationGroup) error {
	query := `INSERT INTO notification_groups (` + groupColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.Name, g.Description, g.RepeatInterval, g.ChannelConfigs, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification group: %w", err)
	}
	return nil
}

// GetByID retrieves a notification group by its ID.
func (s *GroupStore) GetByID(ctx context.Context, id uuid.UUID) (*model.NotificationGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM notification_groups WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByIDs retrieves several groups at once. Missing ids are skipped.
func (s *GroupStore) GetByIDs(ctx context.Context, ids []string) ([]*model.NotificationGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + groupColumns + ` FROM notification_groups WHERE id = ANY($1::uuid[])`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query notification groups: %w", err)
	}
	defer rows.Close()

	var groups []*model.NotificationGroup
	for rows.Next() {
		g, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification groups: %w", err)
	}
	return groups, nil
}

func (s *GroupStore) scanOne(row rowScanner) (*model.NotificationGroup, error) {
	var g model.NotificationGroup
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.RepeatInterval, &g.ChannelConfigs, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification group: %w", err)
	}
	return &g, nil
}
