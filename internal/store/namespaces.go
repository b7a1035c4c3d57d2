package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bulletops/bullet/internal/model"
)

// NamespaceStore handles PostgreSQL operations for namespaces.
type NamespaceStore struct {
	db *sql.DB
}

const namespaceColumns = `id, slug, name, description, created_at, updated_at`

// Create inserts a new namespace record.
func (s *NamespaceStore) Create(ctx context.Context, n *model.Namespace) error {
	query := `INSERT INTO namespaces (` + namespaceColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query, n.ID, n.Slug, n.Name, n.Description, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert namespace: %w", err)
	}
	return nil
}

// GetBySlug retrieves a namespace by its URL slug. Webhook URLs address
// namespaces by slug only.
func (s *NamespaceStore) GetBySlug(ctx context.Context, slug string) (*model.Namespace, error) {
	query := `SELECT ` + namespaceColumns + ` FROM namespaces WHERE slug = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, slug))
}

func (s *NamespaceStore) scanOne(row rowScanner) (*model.Namespace, error) {
	var n model.Namespace
	err := row.Scan(&n.ID, &n.Slug, &n.Name, &n.Description, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan namespace: %w", err)
	}
	return &n, nil
}
