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
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind names a backend. The set is closed: adding a backend means adding a
// constant here and a branch in newBackend.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindMock      Kind = "mock"
)

// Kinds lists every supported backend kind.
func Kinds() []Kind {
	return []Kind{KindOpenAI, KindAnthropic, KindMock}
}

var (
	ErrUnknownProvider = errors.New("unknown LLM provider")
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrMissingModel    = errors.New("missing model id")
	ErrEmptyResponse   = errors.New("empty response from backend")
)

// ParseKind normalizes a provider name. Empty and unknown names are errors.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	names := make([]string, 0, len(Kinds()))
	for _, known := range Kinds() {
		names = append(names, string(known))
	}
	return "", fmt.Errorf("%w %q (supported: %s)", ErrUnknownProvider, s, strings.Join(names, ", "))
}

// Config configures one generation client.
type Config struct {
	Provider       string  `yaml:"provider"`
	APIKey         string  `yaml:"api_key"`
	ModelID        string  `yaml:"model_id"`
	BaseURL        string  `yaml:"base_url"`
	APIVersion     string  `yaml:"api_version"` // non-empty selects an Azure-style deployment endpoint
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`

	MaxAttempts       int           `yaml:"max_attempts"`
	MinBackoff        time.Duration `yaml:"min_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	RequestsPerMinute float64       `yaml:"requests_per_minute"` // 0 disables rate limiting
}

// DefaultConfig returns a Config with every tunable at its default. Decode
// user configuration on top of it so absent keys keep their defaults.
func DefaultConfig() Config {
	return Config{
		TimeoutSeconds: 120,
		Temperature:    0.1,
		MaxTokens:      4096,
		MaxAttempts:    3,
		MinBackoff:     time.Second,
		MaxBackoff:     60 * time.Second,
	}
}

// withDefaults fills zero-valued limits. Temperature is left alone since
// zero is a meaningful setting.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = d.TimeoutSeconds
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = d.MinBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = c.MinBackoff
	}
	return c
}

// Timeout returns the per-call timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
