package httpapi

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bulletops/bullet/internal/intake"
	"github.com/bulletops/bullet/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTickets struct {
	tickets map[uuid.UUID]*model.Ticket
	saved   []*model.Ticket
	saveErr error
}

func (f *fakeTickets) GetByID(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	if t, ok := f.tickets[id]; ok {
		return t, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeTickets) Save(_ context.Context, t *model.Ticket) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, t)
	return nil
}

type fakeProjects struct {
	projects map[uuid.UUID]*model.Project
}

func (f *fakeProjects) GetByID(_ context.Context, id uuid.UUID) (*model.Project, error) {
	if p, ok := f.projects[id]; ok {
		return p, nil
	}
	return nil, errors.New("not found")
}

type fakeNamespaces struct {
	namespaces map[string]*model.Namespace
}

func (f *fakeNamespaces) GetBySlug(_ context.Context, slug string) (*model.Namespace, error) {
	if n, ok := f.namespaces[slug]; ok {
		return n, nil
	}
	return nil, errors.New("not found")
}

type fakeAckNotifier struct {
	acked  []*model.Ticket
	byName []string
	panics bool
}

func (f *fakeAckNotifier) NotifyTicketAcknowledged(_ context.Context, ticket *model.Ticket, acknowledgedBy string) map[string]bool {
	if f.panics {
		panic("notifier exploded")
	}
	f.acked = append(f.acked, ticket)
	f.byName = append(f.byName, acknowledgedBy)
	return map[string]bool{"L1:feishu:bob": true}
}

type fakeProcessor struct {
	result   *intake.Result
	err      error
	payloads []map[string]interface{}
	sources  []string
}

func (f *fakeProcessor) Process(_ context.Context, _ *model.Project, sourceName string, payload map[string]interface{}) (*intake.Result, error) {
	f.sources = append(f.sources, sourceName)
	f.payloads = append(f.payloads, payload)
	return f.result, f.err
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) Health(context.Context) error { return f.err }

type apiFixture struct {
	router    *gin.Engine
	tickets   *fakeTickets
	notifier  *fakeAckNotifier
	processor *fakeProcessor
	health    *fakeHealth
	namespace *model.Namespace
	project   *model.Project
	ticket    *model.Ticket
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	namespace := &model.Namespace{ID: uuid.New(), Slug: "platform", Name: "Platform"}
	project := &model.Project{
		ID:          uuid.New(),
		NamespaceID: namespace.ID.String(),
		Name:        "payments",
		IsActive:    true,
	}
	ticket := model.NewTicket(project.ID.String(), "grafana")
	ticket.Title = "CPU high"

	tickets := &fakeTickets{tickets: map[uuid.UUID]*model.Ticket{ticket.ID: ticket}}
	notifier := &fakeAckNotifier{}
	processor := &fakeProcessor{result: &intake.Result{Status: "ok", TicketID: ticket.ID.String()}}
	health := &fakeHealth{}

	server := NewServerWith(tickets,
		&fakeProjects{projects: map[uuid.UUID]*model.Project{project.ID: project}},
		&fakeNamespaces{namespaces: map[string]*model.Namespace{namespace.Slug: namespace}},
		notifier, processor, health)

	return &apiFixture{
		router:    server.Router(),
		tickets:   tickets,
		notifier:  notifier,
		processor: processor,
		health:    health,
		namespace: namespace,
		project:   project,
		ticket:    ticket,
	}
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func requireJSONField(t *testing.T, w *httptest.ResponseRecorder, field, want string) {
	t.Helper()
	require.Contains(t, w.Body.String(), `"`+field+`":"`+want+`"`)
}
