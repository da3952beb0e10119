// Copyright 2026 Ant Group Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the bridge configuration consumed by binaries.
package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/secretflow/hlobridge/pkg/bridge"
)

type Config struct {
	// Rollout selects the lowering path policy: unspecified, enabled or
	// disabled.
	Rollout string `yaml:"rollout"`
	// DeviceType names the platform registry entry, empty means the host.
	DeviceType string `yaml:"device_type"`
	// DisableFallback surfaces legalization failures instead of retrying on
	// the legacy compiler.
	DisableFallback bool `yaml:"disable_fallback"`
	UseTupleArgs    bool `yaml:"use_tuple_args"`
	// CapabilityProfile points at an HCL device profile registered on top of
	// the built-in host platform.
	CapabilityProfile string `yaml:"capability_profile"`
	LogLevel          string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := bridge.ParseRollout(c.Rollout); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("unknown log level %q", c.LogLevel)
		}
	}
	return nil
}

// RolloutMode returns the parsed rollout policy. Validate owns the spelling
// errors, so unparseable values degrade to the unspecified mode here.
func (c *Config) RolloutMode() bridge.Rollout {
	mode, err := bridge.ParseRollout(c.Rollout)
	if err != nil {
		return bridge.RolloutUnspecified
	}
	return mode
}

// LogrusLevel returns the configured log level, defaulting to info.
func (c *Config) LogrusLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
