// Package config loads the rule engine's process configuration from YAML,
// grounded on the teacher's config package: a single struct decoded with
// gopkg.in/yaml.v2, decoded over a Default() value so defaults are in
// place before decode rather than set via struct tags.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	RuleEngine struct {
		MaxCascadeDepth int `yaml:"max_cascade_depth"`
	} `yaml:"rule_engine"`

	Batch struct {
		Concurrency           int     `yaml:"concurrency"`
		RatePerSecond         float64 `yaml:"rate_per_second"`
		Burst                 int     `yaml:"burst"`
		PerTaskTimeoutSeconds float64 `yaml:"per_task_timeout_seconds"`
	} `yaml:"batch"`

	DSL struct {
		WatchDir string `yaml:"watch_dir"`
	} `yaml:"dsl"`

	Cache struct {
		MaxCost     int64 `yaml:"max_cost"`
		NumCounters int64 `yaml:"num_counters"`
	} `yaml:"cache"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Default() Config {
	var c Config
	c.RuleEngine.MaxCascadeDepth = 16
	c.Batch.Concurrency = 8
	c.Batch.RatePerSecond = 0
	c.Batch.PerTaskTimeoutSeconds = 30
	c.Cache.MaxCost = 1 << 26 // 64MB
	c.Cache.NumCounters = 1e6
	c.Log.Level = "info"
	return c
}

// PerTaskTimeout converts the YAML-friendly seconds field into a
// time.Duration for internal/batch.Executor.
func (c Config) PerTaskTimeout() time.Duration {
	return time.Duration(c.Batch.PerTaskTimeoutSeconds * float64(time.Second))
}

// Load reads and decodes path over Default(), so an incomplete YAML
// document still yields usable values for every unspecified field.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}
