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

import "os"

// apiKeyEnv returns the environment variable consulted for kind's API key.
func apiKeyEnv(kind Kind) string {
	switch kind {
	case KindOpenAI:
		return "OPENAI_API_KEY"
	case KindAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

func envAPIKey(kind Kind) string {
	if name := apiKeyEnv(kind); name != "" {
		return os.Getenv(name)
	}
	return ""
}

// ConfigFromEnv builds a Config from environment variables, for use when no
// configuration file names a provider. Checks in order:
//  1. KEX_LLM_PROVIDER, with KEX_LLM_MODEL
//  2. AZURE_OPENAI_ENDPOINT with AZURE_OPENAI_API_KEY (Azure deployment)
//  3. OPENAI_API_KEY
//  4. ANTHROPIC_API_KEY
//
// Falls back to the mock backend if nothing is configured.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ModelID = os.Getenv("KEX_LLM_MODEL")

	switch {
	case os.Getenv("KEX_LLM_PROVIDER") != "":
		cfg.Provider = os.Getenv("KEX_LLM_PROVIDER")
	case os.Getenv("AZURE_OPENAI_ENDPOINT") != "":
		cfg.Provider = string(KindOpenAI)
		cfg.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		cfg.APIVersion = os.Getenv("AZURE_OPENAI_API_VERSION")
		if cfg.APIVersion == "" {
			cfg.APIVersion = defaultAzureAPIVersion
		}
	case os.Getenv("OPENAI_API_KEY") != "":
		cfg.Provider = string(KindOpenAI)
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		cfg.Provider = string(KindAnthropic)
	default:
		cfg.Provider = string(KindMock)
	}

	if cfg.ModelID == "" {
		cfg.ModelID = defaultModel(Kind(cfg.Provider))
	}
	return cfg
}

func defaultModel(kind Kind) string {
	switch kind {
	case KindOpenAI:
		return "gpt-4o"
	case KindAnthropic:
		return "claude-3-5-sonnet-20241022"
	case KindMock:
		return "mock-model"
	default:
		return ""
	}
}
