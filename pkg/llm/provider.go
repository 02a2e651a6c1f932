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
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

// Backend performs a single completion call. Implementations do not retry;
// Client owns the retry policy.
type Backend interface {
	// Complete returns the model's text for prompt under the given system
	// message.
	Complete(ctx context.Context, prompt, system string) (string, error)

	// Name returns the backend kind.
	Name() string
}

// newBackend is the single dispatch point from Kind to implementation.
func newBackend(kind Kind, cfg Config) (Backend, error) {
	switch kind {
	case KindOpenAI:
		return newOpenAIBackend(cfg)
	case KindAnthropic:
		return newAnthropicBackend(cfg)
	case KindMock:
		return &MockBackend{}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, kind)
	}
}

func requireCredentials(kind Kind, cfg Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("%s: %w (set api_key or %s)", kind, ErrMissingAPIKey, apiKeyEnv(kind))
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		return fmt.Errorf("%s: %w", kind, ErrMissingModel)
	}
	return nil
}

// =============================================================================
// OPENAI
// =============================================================================

// azureSubscriptionHeader authenticates against API-management gateways that
// front Azure OpenAI deployments.
const azureSubscriptionHeader = "Ocp-Apim-Subscription-Key"

const defaultAzureAPIVersion = "2024-06-01"

type openaiBackend struct {
	client openai.Client
	model  string
	temp   float64
	maxTok int64
}

// newOpenAIBackend builds a chat-completions backend. The system message and
// the prompt are sent as separate system and user messages.
func newOpenAIBackend(cfg Config) (*openaiBackend, error) {
	if err := requireCredentials(KindOpenAI, cfg); err != nil {
		return nil, err
	}

	opts := []ooption.RequestOption{
		ooption.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		ooption.WithMaxRetries(0),
		ooption.WithRequestTimeout(cfg.Timeout()),
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.APIVersion != "" {
		if base == "" {
			return nil, fmt.Errorf("openai: base_url is required when api_version is set")
		}
		opts = append(opts,
			ooption.WithBaseURL(base+"/openai/deployments/"+cfg.ModelID+"/"),
			ooption.WithQuery("api-version", cfg.APIVersion),
			ooption.WithHeader(azureSubscriptionHeader, strings.TrimSpace(cfg.APIKey)),
		)
	} else if base != "" {
		opts = append(opts, ooption.WithBaseURL(base+"/"))
	}

	return &openaiBackend{
		client: openai.NewClient(opts...),
		model:  cfg.ModelID,
		temp:   cfg.Temperature,
		maxTok: int64(cfg.MaxTokens),
	}, nil
}

func (b *openaiBackend) Name() string { return string(KindOpenAI) }

func (b *openaiBackend) Complete(ctx context.Context, prompt, system string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(b.temp),
		MaxTokens:   openai.Int(b.maxTok),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// =============================================================================
// ANTHROPIC
// =============================================================================

type anthropicBackend struct {
	client anthropic.Client
	model  string
	temp   float64
	maxTok int64
}

// newAnthropicBackend builds a messages-API backend. The prompt is the single
// user message and the system message travels in the separate system field.
func newAnthropicBackend(cfg Config) (*anthropicBackend, error) {
	if err := requireCredentials(KindAnthropic, cfg); err != nil {
		return nil, err
	}

	opts := []aoption.RequestOption{
		aoption.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		aoption.WithMaxRetries(0),
		aoption.WithRequestTimeout(cfg.Timeout()),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, aoption.WithBaseURL(base+"/"))
	}

	return &anthropicBackend{
		client: anthropic.NewClient(opts...),
		model:  cfg.ModelID,
		temp:   cfg.Temperature,
		maxTok: int64(cfg.MaxTokens),
	}, nil
}

func (b *anthropicBackend) Name() string { return string(KindAnthropic) }

func (b *anthropicBackend) Complete(ctx context.Context, prompt, system string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   b.maxTok,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(b.temp),
	}
	if strings.TrimSpace(system) != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String(), nil
}

// =============================================================================
// MOCK BACKEND (for testing and dry runs)
// =============================================================================

// MockBackend returns scripted responses. With no GenerateFunc it answers
// every prompt with an empty kernel list.
type MockBackend struct {
	GenerateFunc func(ctx context.Context, prompt, system string) (string, error)
}

func (m *MockBackend) Name() string { return string(KindMock) }

func (m *MockBackend) Complete(ctx context.Context, prompt, system string) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, system)
	}
	return `{"kernels": []}`, nil
}
