// Package store provides PostgreSQL persistence for tickets, projects,
// notification groups, contacts, templates and namespaces. Embedded
// documents (timelines, channel configs, payloads) are stored as JSONB and
// round-trip through the model column types.
package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store bundles all entity stores over one database handle.
type Store struct {
	Tickets    *TicketStore
	Projects   *ProjectStore
	Groups     *GroupStore
	Contacts   *ContactStore
	Templates  *TemplateStore
	Namespaces *NamespaceStore

	db *sql.DB
}

// New creates a Store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{
		Tickets:    &TicketStore{db: db},
		Projects:   &ProjectStore{db: db},
		Groups:     &GroupStore{db: db},
		Contacts:   &ContactStore{db: db},
		Templates:  &TemplateStore{db: db},
		Namespaces: &NamespaceStore{db: db},
		db:         db,
	}
}
