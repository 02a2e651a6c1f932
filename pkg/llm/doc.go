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

// Package llm provides the generation client used to extract kernels.
//
// A [Client] wraps exactly one [Backend] and exposes a single operation,
// Generate(ctx, prompt, system), that returns a typed [Result]. Callers must
// check Result.OK: a client never returns an error from Generate and never
// panics. Network errors, timeouts, empty responses and backend panics are
// all retried and, once attempts run out, reported as an absent result.
//
// # Backends
//
// The set of backends is closed:
//   - openai: chat completions through github.com/openai/openai-go, with the
//     system message and the prompt sent as separate messages. Setting
//     api_version switches to an Azure-style deployment endpoint.
//   - anthropic: the messages API through github.com/anthropics/anthropic-sdk-go,
//     with the prompt as the only user message and a separate system field.
//   - mock: scripted responses for tests and dry runs.
//
// Unknown provider names, and missing API keys or model ids for a real
// backend, are rejected by [New].
//
// # Quick Start
//
//	cfg := llm.DefaultConfig()
//	cfg.Provider = "anthropic"
//	cfg.ModelID = "claude-3-5-sonnet-20241022"
//
//	client, err := llm.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	res := client.Generate(ctx, taskPrompt, systemPrompt)
//	if !res.OK {
//	    logger.Warn("no completion", "attempts", res.Attempts, "err", res.Err)
//	}
//
// # Retry Policy
//
// Every failed call is retried until MaxAttempts (default 3) calls have been
// made. Before retry n the client sleeps for a duration drawn uniformly from
// [MinBackoff, min(MaxBackoff, MinBackoff*2^n)], defaults 1s and 60s. The
// SDKs' own retries are disabled so the policy applies exactly once.
// RequestsPerMinute, when positive, additionally paces calls through a token
// bucket shared by all goroutines using the client.
//
// # Environment Variables
//
// An empty api_key is read from OPENAI_API_KEY or ANTHROPIC_API_KEY. When no
// configuration file names a provider, [ConfigFromEnv] picks one from
// KEX_LLM_PROVIDER, AZURE_OPENAI_ENDPOINT, OPENAI_API_KEY or
// ANTHROPIC_API_KEY, in that order.
package llm
