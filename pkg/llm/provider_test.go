// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MockKind(t *testing.T) {
	c, err := New(Config{Provider: "Mock"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", c.Name())

	res := c.Generate(context.Background(), "p", "s")
	require.True(t, res.OK)
	assert.JSONEq(t, `{"kernels": []}`, res.Text)
}

func TestNew_UnknownProvider(t *testing.T) {
	for _, name := range []string{"", "ollama", "gpt"} {
		t.Run(name, func(t *testing.T) {
			_, err := New(Config{Provider: name}, nil)
			require.ErrorIs(t, err, ErrUnknownProvider)
			assert.Contains(t, err.Error(), "openai, anthropic, mock")
		})
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := New(Config{Provider: "openai", ModelID: "gpt-4o"}, nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	_, err = New(Config{Provider: "anthropic", APIKey: "k"}, nil)
	require.ErrorIs(t, err, ErrMissingModel)
}

func TestNew_APIKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	c, err := New(Config{Provider: "anthropic", ModelID: "claude"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())
	assert.Equal(t, "from-env", c.cfg.APIKey)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("  OpenAI ")
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, k)
}

// captured records the last request a fake backend server received.
type captured struct {
	mu     sync.Mutex
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func (c *captured) record(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = r.URL.Path
	c.query = r.URL.RawQuery
	c.header = r.Header.Clone()
	_ = json.NewDecoder(r.Body).Decode(&c.body)
}

func openAIServer(t *testing.T, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.record(r)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "{\"kernels\": []}"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7}
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIBackend_SystemUserSplit(t *testing.T) {
	var got captured
	srv := openAIServer(t, &got)

	cfg := fastConfig()
	cfg.Provider = "openai"
	cfg.APIKey = "sk-test"
	cfg.ModelID = "gpt-4o"
	cfg.BaseURL = srv.URL + "/v1"
	c, err := New(cfg, nil)
	require.NoError(t, err)

	res := c.Generate(context.Background(), "find kernels", "you extract kernels")
	require.True(t, res.OK, "err: %v", res.Err)
	assert.Equal(t, `{"kernels": []}`, res.Text)

	got.mu.Lock()
	defer got.mu.Unlock()
	assert.Equal(t, "/v1/chat/completions", got.path)
	assert.Equal(t, "Bearer sk-test", got.header.Get("Authorization"))
	assert.Equal(t, "gpt-4o", got.body["model"])

	msgs, ok := got.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	second := msgs[1].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "you extract kernels", first["content"])
	assert.Equal(t, "user", second["role"])
	assert.Equal(t, "find kernels", second["content"])
	assert.InDelta(t, 0.1, got.body["temperature"], 1e-9)
	assert.EqualValues(t, 4096, got.body["max_tokens"])
}

func TestOpenAIBackend_AzureDeployment(t *testing.T) {
	var got captured
	srv := openAIServer(t, &got)

	cfg := fastConfig()
	cfg.Provider = "openai"
	cfg.APIKey = "azure-key"
	cfg.ModelID = "my-deploy"
	cfg.BaseURL = srv.URL + "/"
	cfg.APIVersion = "2024-06-01"
	c, err := New(cfg, nil)
	require.NoError(t, err)

	res := c.Generate(context.Background(), "p", "s")
	require.True(t, res.OK, "err: %v", res.Err)

	got.mu.Lock()
	defer got.mu.Unlock()
	assert.Equal(t, "/openai/deployments/my-deploy/chat/completions", got.path)
	assert.Contains(t, got.query, "api-version=2024-06-01")
	assert.Equal(t, "azure-key", got.header.Get("Ocp-Apim-Subscription-Key"))
}

func TestOpenAIBackend_AzureRequiresBaseURL(t *testing.T) {
	_, err := New(Config{Provider: "openai", APIKey: "k", ModelID: "m", APIVersion: "2024-06-01"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestOpenAIBackend_ServerErrorIsRetriedThenAbsent(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.Provider = "openai"
	cfg.APIKey = "k"
	cfg.ModelID = "gpt-4o"
	cfg.BaseURL = srv.URL
	c, err := New(cfg, nil)
	require.NoError(t, err)

	res := c.Generate(context.Background(), "p", "s")
	assert.False(t, res.OK)
	assert.Equal(t, 3, res.Attempts)
	mu.Lock()
	assert.Equal(t, 3, calls, "SDK retries must be disabled")
	mu.Unlock()
}

func TestAnthropicBackend_SeparateSystemParam(t *testing.T) {
	var got captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.record(r)
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "{\"kernels\": "}, {"type": "text", "text": "[]}"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 3, "output_tokens": 4}
		}`))
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.Provider = "anthropic"
	cfg.APIKey = "ak-test"
	cfg.ModelID = "claude-3-5-sonnet-20241022"
	cfg.BaseURL = srv.URL
	c, err := New(cfg, nil)
	require.NoError(t, err)

	res := c.Generate(context.Background(), "find kernels", "you extract kernels")
	require.True(t, res.OK, "err: %v", res.Err)
	assert.Equal(t, `{"kernels": []}`, res.Text)

	got.mu.Lock()
	defer got.mu.Unlock()
	assert.Equal(t, "/v1/messages", got.path)
	assert.Equal(t, "ak-test", got.header.Get("X-Api-Key"))

	system, ok := got.body["system"].([]any)
	require.True(t, ok, "system must be a separate parameter")
	require.Len(t, system, 1)
	assert.Equal(t, "you extract kernels", system[0].(map[string]any)["text"])

	msgs, ok := got.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	only := msgs[0].(map[string]any)
	assert.Equal(t, "user", only["role"])
	raw, err := json.Marshal(only["content"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "find kernels")
	assert.EqualValues(t, 4096, got.body["max_tokens"])
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("KEX_LLM_PROVIDER", "")
	t.Setenv("KEX_LLM_MODEL", "")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := ConfigFromEnv()
	assert.Equal(t, "mock", cfg.Provider)

	t.Setenv("ANTHROPIC_API_KEY", "k")
	cfg = ConfigFromEnv()
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.NotEmpty(t, cfg.ModelID)

	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://gw.example.com")
	cfg = ConfigFromEnv()
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, defaultAzureAPIVersion, cfg.APIVersion)
	assert.Equal(t, "https://gw.example.com", cfg.BaseURL)
}
