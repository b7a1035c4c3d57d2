package httpapi

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *apiFixture) webhookPath() string {
	return "/webhook/" + f.namespace.Slug + "/" + f.project.ID.String()
}

func TestWebhookUnknownNamespace(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/webhook/nope/"+f.project.ID.String(), `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Namespace not found")
}

func TestWebhookUnknownProject(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/webhook/"+f.namespace.Slug+"/"+uuid.NewString(), `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/webhook/"+f.namespace.Slug+"/not-a-uuid", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookProjectInOtherNamespace(t *testing.T) {
	f := newAPIFixture(t)
	f.project.NamespaceID = uuid.NewString()

	w := f.do(http.MethodPost, f.webhookPath(), `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Project not found")
}

func TestWebhookDisabledProject(t *testing.T) {
	f := newAPIFixture(t)
	f.project.IsActive = false

	w := f.do(http.MethodPost, f.webhookPath(), `{"title":"x"}`)
	require.Equal(t, http.StatusOK, w.Code)
	requireJSONField(t, w, "status", "ignored")
	assert.Empty(t, f.processor.payloads)
}

func TestWebhookInvalidJSON(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, f.webhookPath(), `{broken`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid JSON payload")
}

func TestWebhookProcessesPayload(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, f.webhookPath()+"?source=aliyun_pai", `{"title":"CPU high"}`)
	require.Equal(t, http.StatusOK, w.Code)
	requireJSONField(t, w, "status", "ok")

	require.Len(t, f.processor.payloads, 1)
	assert.Equal(t, "CPU high", f.processor.payloads[0]["title"])
	assert.Equal(t, []string{"aliyun_pai"}, f.processor.sources)
}

func TestWebhookDefaultSource(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, f.webhookPath(), `{"title":"x"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"custom"}, f.processor.sources)
}

func TestWebhookIntakeFailure(t *testing.T) {
	f := newAPIFixture(t)
	f.processor.err = assert.AnError
	f.processor.result = nil

	w := f.do(http.MethodPost, f.webhookPath(), `{"title":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	requireJSONField(t, w, "status", "ok")

	f.health.err = assert.AnError
	w = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTicketDetail(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/tickets/"+f.ticket.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "CPU high")
	// The ack token never leaves the server.
	assert.NotContains(t, w.Body.String(), f.ticket.AckToken)

	w = f.do(http.MethodGet, "/tickets/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
