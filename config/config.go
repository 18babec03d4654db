// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads spicefeed configuration from a YAML file with
// environment overrides. Missing or unparsable files fall back to
// defaults; the loader never fails hard.
package config

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "SPICEFEED_CONFIG"
	dataDirEnv         = "SPICEFEED_DATA_DIR"
	aiHostEnv          = "SPICEFEED_AI_HOST"
	embeddingModelEnv  = "SPICEFEED_EMBEDDING_MODEL"
	classifierModelEnv = "SPICEFEED_CLASSIFIER_MODEL"
)

// Duration wraps time.Duration with YAML support for strings like "30s".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds high-level settings required across the application.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Fetch     FetchConfig     `yaml:"fetch"`
	AI        AIConfig        `yaml:"ai"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// StorageConfig describes the item store.
type StorageConfig struct {
	// Path is the BadgerDB directory.
	Path string `yaml:"path"`

	// Capacity is the hard bound on stored items.
	Capacity int `yaml:"capacity"`

	// RetentionDays drives the purge command; items ingested longer ago
	// are removed. Zero disables age-based purging.
	RetentionDays int `yaml:"retentionDays"`
}

// FetchConfig tunes the feed fetcher.
type FetchConfig struct {
	PoolSize         int      `yaml:"poolSize"`
	BreakerThreshold int      `yaml:"breakerThreshold"`
	BreakerCooldown  Duration `yaml:"breakerCooldown"`
	SourceTimeout    Duration `yaml:"sourceTimeout"`
	RetryAttempts    int      `yaml:"retryAttempts"`
	RetryBaseDelay   Duration `yaml:"retryBaseDelay"`
}

// AIConfig describes the embedding and classification services.
type AIConfig struct {
	Host            string `yaml:"host"`
	EmbeddingModel  string `yaml:"embeddingModel"`
	ClassifierModel string `yaml:"classifierModel"`

	// UseClassifier enables LLM enrichment during fetching. Off by
	// default; heuristics apply instead.
	UseClassifier bool `yaml:"useClassifier"`
}

// RetrievalConfig describes the semantic index.
type RetrievalConfig struct {
	SnapshotPath string `yaml:"snapshotPath"`
	BatchSize    int    `yaml:"batchSize"`
}

// SourceConfig describes a single feed to poll.
type SourceConfig struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Category string   `yaml:"category"`
	Timeout  Duration `yaml:"timeout"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadPath(os.Getenv(configPathEnv))
}

// LoadPath reads configuration from an explicit path, falling back to
// defaults on any read or parse problem.
func LoadPath(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			slog.Warn("cannot read config, falling back to defaults", "path", path, "err", err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				slog.Warn("cannot parse config, falling back to defaults", "path", path, "err", err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dataDirEnv); v != "" {
		c.Storage.Path = v + "/items"
		c.Retrieval.SnapshotPath = v + "/index.snap"
	}

	if v := os.Getenv(aiHostEnv); v != "" {
		c.AI.Host = v
	}

	if v := os.Getenv(embeddingModelEnv); v != "" {
		c.AI.EmbeddingModel = v
	}

	if v := os.Getenv(classifierModelEnv); v != "" {
		c.AI.ClassifierModel = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Storage.Path != "" {
		base.Storage.Path = override.Storage.Path
	}
	if override.Storage.Capacity > 0 {
		base.Storage.Capacity = override.Storage.Capacity
	}
	if override.Storage.RetentionDays > 0 {
		base.Storage.RetentionDays = override.Storage.RetentionDays
	}

	if override.Fetch.PoolSize > 0 {
		base.Fetch.PoolSize = override.Fetch.PoolSize
	}
	if override.Fetch.BreakerThreshold > 0 {
		base.Fetch.BreakerThreshold = override.Fetch.BreakerThreshold
	}
	if override.Fetch.BreakerCooldown > 0 {
		base.Fetch.BreakerCooldown = override.Fetch.BreakerCooldown
	}
	if override.Fetch.SourceTimeout > 0 {
		base.Fetch.SourceTimeout = override.Fetch.SourceTimeout
	}
	if override.Fetch.RetryAttempts > 0 {
		base.Fetch.RetryAttempts = override.Fetch.RetryAttempts
	}
	if override.Fetch.RetryBaseDelay > 0 {
		base.Fetch.RetryBaseDelay = override.Fetch.RetryBaseDelay
	}

	if override.AI.Host != "" {
		base.AI.Host = override.AI.Host
	}
	if override.AI.EmbeddingModel != "" {
		base.AI.EmbeddingModel = override.AI.EmbeddingModel
	}
	if override.AI.ClassifierModel != "" {
		base.AI.ClassifierModel = override.AI.ClassifierModel
	}
	if override.AI.UseClassifier {
		base.AI.UseClassifier = true
	}

	if override.Retrieval.SnapshotPath != "" {
		base.Retrieval.SnapshotPath = override.Retrieval.SnapshotPath
	}
	if override.Retrieval.BatchSize > 0 {
		base.Retrieval.BatchSize = override.Retrieval.BatchSize
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Path:          "data/items",
			Capacity:      50000,
			RetentionDays: 30,
		},
		Fetch: FetchConfig{
			PoolSize:         4,
			BreakerThreshold: 3,
			BreakerCooldown:  Duration(5 * time.Minute),
			SourceTimeout:    Duration(30 * time.Second),
			RetryAttempts:    3,
			RetryBaseDelay:   Duration(500 * time.Millisecond),
		},
		AI: AIConfig{
			Host:            "http://localhost:11434",
			EmbeddingModel:  "embeddinggemma",
			ClassifierModel: "qwen2.5:3b",
		},
		Retrieval: RetrievalConfig{
			SnapshotPath: "data/index.snap",
			BatchSize:    32,
		},
		Sources: nil,
	}
}
