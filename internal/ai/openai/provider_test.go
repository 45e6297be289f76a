package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/aigrader/internal/ai/openai"
	"github.com/kiranshivaraju/aigrader/internal/ai/transport"
	"github.com/kiranshivaraju/aigrader/internal/config"
	"github.com/kiranshivaraju/aigrader/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completion = `{"id":"cmpl-1","model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"hola"},"finish_reason":"stop"}]}`

func TestComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(completion))
	}))
	defer srv.Close()

	p := openai.NewProvider(config.OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "gpt-4o-mini"})
	reply, err := p.Complete(context.Background(), models.ChatRequest{
		Model:    "gpt-4o",
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
		JSON:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hola", reply)
	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
}

func TestComplete_CustomHeadersAndNoKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "value", r.Header.Get("X-Custom"))
		assert.Empty(t, r.Header.Get("X-Empty"), "empty headers are not sent")
		_, _ = w.Write([]byte(completion))
	}))
	defer srv.Close()

	p := openai.New(openai.Options{
		Name:    "local",
		BaseURL: srv.URL,
		Headers: map[string]string{"X-Custom": "value", "X-Empty": ""},
	})
	assert.Equal(t, "local", p.Name())
	_, err := p.Complete(context.Background(), models.ChatRequest{Model: "m"})
	require.NoError(t, err)
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	p := openai.New(openai.Options{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), models.ChatRequest{Model: "m"})
	assert.ErrorIs(t, err, transport.ErrEmptyReply)
}

func TestComplete_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := openai.New(openai.Options{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), models.ChatRequest{Model: "m"})
	var statusErr *transport.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, statusErr.Retryable())
}

func TestComplete_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := openai.New(openai.Options{BaseURL: srv.URL})
	_, err := p.Complete(ctx, models.ChatRequest{Model: "m"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
