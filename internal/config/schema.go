package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackzampolin/docwatch/internal/backend"
	"github.com/jackzampolin/docwatch/internal/jobgroup"
	"github.com/jackzampolin/docwatch/internal/reconcile"
)

// Config holds docwatch configuration.
// Stored at: ~/.docwatch/config.yaml
type Config struct {
	Server     ServerCfg                    `mapstructure:"server" yaml:"server"`
	Poll       PollCfg                      `mapstructure:"poll" yaml:"poll"`
	Health     HealthCfg                    `mapstructure:"health" yaml:"health"`
	JobGroup   JobGroupCfg                  `mapstructure:"job_group" yaml:"job_group"`
	Extractors []reconcile.ExtractorPattern `mapstructure:"extractors" yaml:"extractors"`
	Listen     string                       `mapstructure:"listen" yaml:"listen"`
}

// ServerCfg locates the processing backend.
type ServerCfg struct {
	URL            string        `mapstructure:"url" yaml:"url"` // supports ${ENV_VAR} syntax
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// PollCfg controls the poll scheduler.
type PollCfg struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// HealthCfg controls the pre-flight health probe.
type HealthCfg struct {
	Attempts uint          `mapstructure:"attempts" yaml:"attempts"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
}

// JobGroupCfg selects the job group store.
type JobGroupCfg struct {
	Backend string               `mapstructure:"backend" yaml:"backend"` // "file", "redis"
	Redis   jobgroup.RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// Validate checks values that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerURL() == "" {
		errs = append(errs, errors.New("server.url is required"))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval))
	}
	if c.Health.Attempts == 0 {
		errs = append(errs, errors.New("health.attempts must be at least 1"))
	}
	switch c.JobGroup.Backend {
	case "", jobgroup.BackendFile, jobgroup.BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("job_group.backend must be file or redis, got %q", c.JobGroup.Backend))
	}
	return errors.Join(errs...)
}

// ServerURL returns the backend URL with env references resolved.
func (c *Config) ServerURL() string {
	return ResolveEnvVars(c.Server.URL)
}

// ProbeConfig converts the health settings for backend.WaitHealthy.
func (c *Config) ProbeConfig() backend.ProbeConfig {
	return backend.ProbeConfig{
		Attempts: c.Health.Attempts,
		Timeout:  c.Health.Timeout,
		Delay:    c.Health.Delay,
	}
}

// JobGroupConfig converts the store settings for jobgroup.Open. path is
// the file backend's location.
func (c *Config) JobGroupConfig(path string) jobgroup.Config {
	redis := c.JobGroup.Redis
	redis.Password = ResolveEnvVars(redis.Password)
	return jobgroup.Config{
		Backend: c.JobGroup.Backend,
		Path:    path,
		Redis:   redis,
	}
}
