package store

import (
	"context"
	"fmt"
)

// schema is applied at startup. Statements are idempotent so every boot
// converges the database to the current layout.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS namespaces (
		id UUID PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY,
		namespace_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		notification_group_ids JSONB NOT NULL DEFAULT '[]',
		notification_template_id TEXT NOT NULL DEFAULT '',
		escalation_config JSONB NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		notify_on_ack BOOLEAN NOT NULL DEFAULT FALSE,
		silenced_until TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notification_groups (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		repeat_interval INTEGER NOT NULL DEFAULT 0,
		channel_configs JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contacts (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		phones JSONB NOT NULL DEFAULT '[]',
		emails JSONB NOT NULL DEFAULT '[]',
		feishu_webhook_url TEXT NOT NULL DEFAULT '',
		slack_webhook_url TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notification_templates (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		is_builtin BOOLEAN NOT NULL DEFAULT FALSE,
		feishu_card TEXT NOT NULL DEFAULT '',
		email_subject TEXT NOT NULL DEFAULT '',
		email_body TEXT NOT NULL DEFAULT '',
		sms_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id UUID PRIMARY KEY,
		project_id TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		escalation_level INTEGER NOT NULL DEFAULT 1,
		payload JSONB NOT NULL DEFAULT '{}',
		labels JSONB NOT NULL DEFAULT '{}',
		parsed_data JSONB NOT NULL DEFAULT '{}',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL DEFAULT '',
		ack_token TEXT NOT NULL,
		acknowledged_at TIMESTAMPTZ,
		acknowledged_by TEXT NOT NULL DEFAULT '',
		last_notified_at TIMESTAMPTZ,
		notification_count INTEGER NOT NULL DEFAULT 0,
		events JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets (status)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_project_status ON tickets (project_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_project_created ON tickets (project_id, created_at DESC)`,
}

// EnsureSchema creates tables and indexes that do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
