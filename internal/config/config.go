// Package config loads infosweep's YAML configuration file, grounded on
// cuemby-warren and vjache-cie's direct use of gopkg.in/yaml.v3 for
// config decode.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of the pipeline's YAML config file, per
// spec.md section 6's external interface table.
type Config struct {
	Postgres  PostgresConfig   `yaml:"postgres"`
	Redis     *RedisConfig     `yaml:"redis"`
	Nats      *NatsConfig      `yaml:"nats"`
	Vault     *VaultConfig     `yaml:"vault"`
	Queue     QueueConfig      `yaml:"queue"`
	Rules     RulesConfig      `yaml:"rules"`
	Sources   []SourceConfig   `yaml:"sources"`
	Admin     AdminConfig      `yaml:"admin"`
	Retention RetentionConfig  `yaml:"retention"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type NatsConfig struct {
	URL string `yaml:"url"`
}

type VaultConfig struct {
	Address    string `yaml:"address"`
	Token      string `yaml:"token"`
	SecretPath string `yaml:"secret_path"`
}

type QueueConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend     string `yaml:"backend"`
	RawMaxSize  int    `yaml:"raw_max_size"`
	SinkMaxSize int    `yaml:"sink_max_size"`
}

type RulesConfig struct {
	Paths []string `yaml:"paths"`
	// ExternalVars supplies the ${name} substitution table rule patterns
	// can reference (yara_external_vars), threaded into ruleengine.Compile
	// and re-applied on the next rules reload.
	ExternalVars map[string]string `yaml:"yara_external_vars"`
}

type SourceConfig struct {
	Type       string `yaml:"type"`
	OAuth      string `yaml:"oauth"`
	Username   string `yaml:"username"`
	DevKey     string `yaml:"dev_key"`
	Path       string `yaml:"path"`
	TimeoutSec int    `yaml:"timeout"`
	FanoutCap  int    `yaml:"fanout_cap"`
}

type AdminConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type RetentionConfig struct {
	Schedule     string `yaml:"schedule"`
	MaxAgeDays   int    `yaml:"max_age_days"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Admin.ListenAddr == "" {
		c.Admin.ListenAddr = ":8090"
	}
	if c.Queue.Backend == "" {
		c.Queue.Backend = "memory"
	}
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = "@daily"
	}
}
