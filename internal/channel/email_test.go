package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendSend(t *testing.T) {
	var got map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewResendSender("re_key", "alerts@example.com",
		[]string{"carol@example.com", "dave@example.com"})
	sender.APIURL = srv.URL
	sender.Subject = "[grafana] CPU high"
	sender.HTMLBody = "<h2>CPU high</h2>"

	require.NoError(t, sender.Send(context.Background(), newEvent()))

	assert.Equal(t, "Bearer re_key", auth)
	assert.Equal(t, "alerts@example.com", got["from"])
	assert.Equal(t, "[grafana] CPU high", got["subject"])
	assert.Equal(t, "<h2>CPU high</h2>", got["html"])
	assert.Equal(t, []interface{}{"carol@example.com", "dave@example.com"}, got["to"])
}

func TestResendSendFallbackBody(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	sender := NewResendSender("re_key", "alerts@example.com", []string{"carol@example.com"})
	sender.APIURL = srv.URL

	require.NoError(t, sender.Send(context.Background(), newEvent()))
	assert.Equal(t, "[grafana] CPU high", got["subject"])
	assert.Contains(t, got["html"], "CPU high")
}

func TestResendSendPartialOverrideFallsBack(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	sender := NewResendSender("re_key", "alerts@example.com", []string{"carol@example.com"})
	sender.APIURL = srv.URL
	sender.Subject = "Rendered subject without a body"

	require.NoError(t, sender.Send(context.Background(), newEvent()))

	// A subject without a body is half an artifact; both fall back together.
	assert.Equal(t, "[grafana] CPU high", got["subject"])
	assert.Contains(t, got["html"], "CPU high")
}

func TestResendSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid from address"}`))
	}))
	defer srv.Close()

	sender := NewResendSender("re_key", "alerts@example.com", []string{"carol@example.com"})
	sender.APIURL = srv.URL

	err := sender.Send(context.Background(), newEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resend_email")
}

func TestResendSendMissingConfig(t *testing.T) {
	sender := NewResendSender("", "", []string{"carol@example.com"})
	assert.Error(t, sender.Send(context.Background(), newEvent()))

	sender = NewResendSender("re_key", "alerts@example.com", nil)
	assert.Error(t, sender.Send(context.Background(), newEvent()))
}
