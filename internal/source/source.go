// Package source normalizes inbound webhook payloads. A source parser
// turns a provider-specific body into the ticket fields; unknown sources
// fall back to a generic field extraction.
package source

import (
	"github.com/bulletops/bullet/internal/telemetry"
)

// Alert statuses produced by normalization.
const (
	StatusFiring   = "firing"
	StatusResolved = "resolved"
	StatusIgnored  = "ignored"
)

// Extraction is the normalized view of one webhook payload.
type Extraction struct {
	Title       string
	Description string
	Severity    string
	Status      string
	Labels      map[string]string
	ParsedData  map[string]interface{}
}

// Source parses payloads of one provider.
type Source interface {
	Name() string
	Parse(payload map[string]interface{}) (*Extraction, error)
}

// Registry maps source names to parsers.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates a registry with all known parsers registered.
func NewRegistry() *Registry {
	r := &Registry{sources: map[string]Source{}}
	r.Register(NewAliyunPAISource())
	return r
}

// Register adds a parser under its name.
func (r *Registry) Register(s Source) {
	r.sources[s.Name()] = s
}

// Extract normalizes a payload. A registered parser is tried first; on a
// parse failure or an unknown source the generic extraction applies.
func (r *Registry) Extract(sourceName string, payload map[string]interface{}) *Extraction {
	if s, ok := r.sources[sourceName]; ok {
		ext, err := s.Parse(payload)
		if err == nil {
			return ext
		}
		telemetry.GetGlobalLogger().
			WithField("source", sourceName).
			WithField("error", err.Error()).
			Warn("Source parser failed, falling back to generic extraction")
	}
	return fallbackExtract(payload)
}

// fallbackExtract pulls the common fields providers tend to use.
func fallbackExtract(payload map[string]interface{}) *Extraction {
	ext := &Extraction{
		Title:       stringField(payload, "title", "alertname", "name"),
		Description: stringField(payload, "message", "description"),
		Severity:    stringField(payload, "severity", "level"),
		Status:      StatusFiring,
		Labels:      map[string]string{},
	}
	if status := stringField(payload, "status"); status != "" {
		ext.Status = status
	}
	if labels, ok := payload["labels"].(map[string]interface{}); ok {
		for k, v := range labels {
			if s, ok := v.(string); ok {
				ext.Labels[k] = s
			}
		}
	}
	return ext
}

func stringField(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
