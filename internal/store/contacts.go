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

// ContactStore handles PostgreSQL operations for contacts.
type ContactStore struct {
	db *sql.DB
}

const contactColumns = `id, name, phones, emails, feishu_webhook_url, slack_webhook_url, note, created_at, updated_at`

// Create inserts a new contact record.
func (s *ContactStore) Create(ctx context.Context, c *model.Contact) error {
	query := `INSERT INTO contacts (` + contactColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Phones, c.Emails, c.FeishuWebhookURL, c.SlackWebhookURL, c.Note, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// GetByIDs retrieves several contacts at once. Missing or malformed ids are
// skipped so one dangling reference does not block a whole group.
func (s *ContactStore) GetByIDs(ctx context.Context, ids []string) ([]*model.Contact, error) {
	valid := ids[:0:0]
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = ANY($1::uuid[])`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(valid))
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*model.Contact
	for rows.Next() {
		c, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}

func (s *ContactStore) scanOne(row rowScanner) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.Name, &c.Phones, &c.Emails, &c.FeishuWebhookURL, &c.SlackWebhookURL, &c.Note, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}
	return &c, nil
}
