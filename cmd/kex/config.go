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

package main

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/kex/pkg/artifact"
	"github.com/kraklabs/kex/pkg/discovery"
	"github.com/kraklabs/kex/pkg/extraction"
	"github.com/kraklabs/kex/pkg/llm"
)

const defaultConfigPath = "kex.yaml"

// Config is the kex.yaml project configuration.
type Config struct {
	SourceDir       string        `yaml:"source_dir"`
	OutputRoot      string        `yaml:"output_root"`
	Extensions      []string      `yaml:"extensions"`
	Marker          string        `yaml:"marker"`
	Exclude         []string      `yaml:"exclude"`
	MaxWorkers      int           `yaml:"max_workers"`
	KernelExtension string        `yaml:"kernel_extension"`
	Audit           bool          `yaml:"audit"`
	Prompts         PromptsConfig `yaml:"prompts"`
	LLM             llm.Config    `yaml:"llm"`
}

// PromptsConfig locates the two prompt files.
type PromptsConfig struct {
	System string `yaml:"system"`
	Task   string `yaml:"task"`
}

// DefaultConfig returns the configuration used when kex.yaml is absent.
func DefaultConfig() *Config {
	return &Config{
		SourceDir:       "source_projects",
		OutputRoot:      "output",
		Extensions:      append([]string(nil), discovery.DefaultExtensions...),
		Marker:          discovery.DefaultMarker,
		MaxWorkers:      extraction.DefaultWorkers,
		KernelExtension: artifact.DefaultKernExt,
		Prompts: PromptsConfig{
			System: filepath.Join("template", "EN", "v1", "system_prompt.txt"),
			Task:   filepath.Join("template", "EN", "v1", "task_prompt.txt"),
		},
		LLM: llm.DefaultConfig(),
	}
}

// LoadConfig reads the configuration at path. With an empty path it reads
// ./kex.yaml and falls back to the defaults if that file does not exist.
// ${VAR} references are expanded from the environment before decoding, and
// relative paths are resolved against the config file's directory.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && stderrors.Is(err, fs.ErrNotExist) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills values left empty by the file. A missing llm.provider
// is taken from the environment (see llm.ConfigFromEnv).
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if len(c.Extensions) == 0 {
		c.Extensions = d.Extensions
	}
	if c.Marker == "" {
		c.Marker = d.Marker
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = d.MaxWorkers
	}
	if c.KernelExtension == "" {
		c.KernelExtension = d.KernelExtension
	}
	if c.OutputRoot == "" {
		c.OutputRoot = d.OutputRoot
	}
	if c.SourceDir == "" {
		c.SourceDir = d.SourceDir
	}

	if c.LLM.Provider == "" {
		env := llm.ConfigFromEnv()
		c.LLM.Provider = env.Provider
		if c.LLM.ModelID == "" {
			c.LLM.ModelID = env.ModelID
		}
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = env.BaseURL
		}
		if c.LLM.APIVersion == "" {
			c.LLM.APIVersion = env.APIVersion
		}
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = env.APIKey
		}
	}
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.SourceDir, &c.OutputRoot, &c.Prompts.System, &c.Prompts.Task} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// InventoryPath is where collect writes the inventory.
func (c *Config) InventoryPath() string {
	return filepath.Join(c.OutputRoot, artifact.InventoryFile)
}

// ResultsDir holds one extraction artifact per source file.
func (c *Config) ResultsDir() string {
	return filepath.Join(c.OutputRoot, artifact.ResultsDir)
}

// KernelsDir holds the materialized kernel files and the manifest.
func (c *Config) KernelsDir() string {
	return filepath.Join(c.OutputRoot, artifact.KernelsDir)
}
