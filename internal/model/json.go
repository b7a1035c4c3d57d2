package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap is a JSON object column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer for database storage.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval.
func (m *JSONMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// Labels is a string-to-string JSON column.
type Labels map[string]string

// Value implements driver.Valuer for database storage.
func (l Labels) Value() (driver.Value, error) {
	if l == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for database retrieval.
func (l *Labels) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// StringList is a JSON array-of-strings column.
type StringList []string

// Value implements driver.Valuer for database storage.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval.
func (s *StringList) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func scanJSON(value, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("unsupported type for JSON column")
	}
}
