package vllm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/aigrader/internal/ai/vllm"
	"github.com/kiranshivaraju/aigrader/internal/config"
	"github.com/kiranshivaraju/aigrader/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_AddsV1Prefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	for _, base := range []string{srv.URL, srv.URL + "/", srv.URL + "/v1"} {
		p := vllm.NewProvider(config.VLLMConfig{BaseURL: base, Model: "mistral-7b"})
		assert.Equal(t, "vllm", p.Name())
		_, err := p.Complete(context.Background(), models.ChatRequest{})
		require.NoError(t, err)
	}
}
