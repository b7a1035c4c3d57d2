// Package httpapi exposes the HTTP surface: webhook intake, acknowledge
// callback links, ticket detail and health.
package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bulletops/bullet/internal/intake"
	"github.com/bulletops/bullet/internal/model"
	"github.com/bulletops/bullet/internal/store"
)

// TicketAccess is the ticket persistence the handlers need.
type TicketAccess interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	Save(ctx context.Context, t *model.Ticket) error
}

// ProjectGetter resolves projects addressed by webhook URLs.
type ProjectGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
}

// NamespaceGetter resolves namespaces addressed by webhook URLs.
type NamespaceGetter interface {
	GetBySlug(ctx context.Context, slug string) (*model.Namespace, error)
}

// AckNotifier sends acknowledgement fan-out notifications.
type AckNotifier interface {
	NotifyTicketAcknowledged(ctx context.Context, ticket *model.Ticket, acknowledgedBy string) map[string]bool
}

// IntakeProcessor handles validated webhook payloads.
type IntakeProcessor interface {
	Process(ctx context.Context, project *model.Project, sourceName string, payload map[string]interface{}) (*intake.Result, error)
}

// HealthChecker reports backing-store health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server wires the HTTP handlers to their dependencies.
type Server struct {
	tickets    TicketAccess
	projects   ProjectGetter
	namespaces NamespaceGetter
	notifier   AckNotifier
	intake     IntakeProcessor
	health     HealthChecker
}

// NewServer creates a server over the production store.
func NewServer(st *store.Store, notifier AckNotifier, processor IntakeProcessor, health HealthChecker) *Server {
	return &Server{
		tickets:    st.Tickets,
		projects:   st.Projects,
		namespaces: st.Namespaces,
		notifier:   notifier,
		intake:     processor,
		health:     health,
	}
}

// NewServerWith creates a server with explicit dependencies.
func NewServerWith(tickets TicketAccess, projects ProjectGetter, namespaces NamespaceGetter,
	notifier AckNotifier, processor IntakeProcessor, health HealthChecker) *Server {
	return &Server{
		tickets:    tickets,
		projects:   projects,
		namespaces: namespaces,
		notifier:   notifier,
		intake:     processor,
		health:     health,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(RecoveryMiddleware())
	router.Use(CorrelationMiddleware())

	router.POST("/webhook/:namespace/:project", s.handleWebhook)
	router.GET("/ack/:id", s.handleAck)
	router.GET("/tickets/:id", s.handleTicketDetail)
	router.GET("/health", s.handleHealth)

	return router
}
