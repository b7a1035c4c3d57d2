package model

import (
	"time"

	"github.com/google/uuid"
)

// Namespace groups projects under a slug-addressed container. The webhook
// URL scheme is /webhook/{namespace_slug}/{project_id}.
type Namespace struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
