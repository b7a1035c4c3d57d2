package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bulletops/bullet/internal/model"
)

// TemplateStore handles PostgreSQL operations for notification templates.
type TemplateStore struct {
	db *sql.DB
}

const templateColumns = `id, name, description, is_builtin, feishu_card, email_subject, email_body, sms_message, created_at, updated_at`

// GetByID retrieves a template by its ID.
func (s *TemplateStore) GetByID(ctx context.Context, id uuid.UUID) (*model.NotificationTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves a template by its unique name.
func (s *TemplateStore) GetByName(ctx context.Context, name string) (*model.NotificationTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE name = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, name))
}

// EnsureBuiltins seeds the built-in templates and refreshes their bodies so
// deployments pick up template changes on restart.
func (s *TemplateStore) EnsureBuiltins(ctx context.Context) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO notification_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, TRUE, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			feishu_card = EXCLUDED.feishu_card,
			email_subject = EXCLUDED.email_subject,
			email_body = EXCLUDED.email_body,
			sms_message = EXCLUDED.sms_message,
			updated_at = EXCLUDED.updated_at
		WHERE notification_templates.is_builtin
	`
	for _, tpl := range model.BuiltinTemplates() {
		_, err := s.db.ExecContext(ctx, query,
			uuid.New(), tpl.Name, tpl.Description,
			tpl.FeishuCard, tpl.EmailSubject, tpl.EmailBody, tpl.SMSMessage, now)
		if err != nil {
			return fmt.Errorf("failed to seed builtin template %s: %w", tpl.Name, err)
		}
	}
	return nil
}

func (s *TemplateStore) scanOne(row rowScanner) (*model.NotificationTemplate, error) {
	var t model.NotificationTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.IsBuiltin,
		&t.FeishuCard, &t.EmailSubject, &t.EmailBody, &t.SMSMessage, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}
	return &t, nil
}
