package scrapedash

import (
	"time"

	"github.com/pkg/errors"
)

// DBSettings configures the mongo connection.
type DBSettings struct {
	Url                string `yaml:"url"`
	DB                 string `yaml:"db"`
	ConnectTimeoutSecs int    `yaml:"connect_timeout_secs"`
}

func (s *DBSettings) SectionId() string { return "database" }

func (s *DBSettings) ValidateAndDefault() error {
	if s.Url == "" {
		s.Url = "mongodb://localhost:27017"
	}
	if s.DB == "" {
		return errors.New("database name must not be empty")
	}
	if s.ConnectTimeoutSecs <= 0 {
		s.ConnectTimeoutSecs = 10
	}
	return nil
}

func (s *DBSettings) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSecs) * time.Second
}

// APIConfig configures the REST server.
type APIConfig struct {
	ListenAddr      string   `yaml:"listen_addr"`
	URL             string   `yaml:"url"`
	CORSOrigins     []string `yaml:"cors_origins"`
	ShutdownSeconds int      `yaml:"shutdown_seconds"`
}

func (c *APIConfig) SectionId() string { return "api" }

func (c *APIConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

func (c *APIConfig) ValidateAndDefault() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultAPIListenAddr
	}
	if c.ShutdownSeconds <= 0 {
		c.ShutdownSeconds = 10
	}
	return nil
}

// AmboyConfig configures the background job queue.
type AmboyConfig struct {
	Name                string `yaml:"name"`
	PoolSizeLocal       int    `yaml:"local_workers"`
	RunTimeoutMinutes   int    `yaml:"run_timeout_minutes"`
	CronIntervalSeconds int    `yaml:"cron_interval_seconds"`
	DisableCrons        bool   `yaml:"disable_crons"`
}

func (c *AmboyConfig) SectionId() string { return "amboy" }

func (c *AmboyConfig) ValidateAndDefault() error {
	if c.Name == "" {
		c.Name = ServiceName
	}
	if c.PoolSizeLocal <= 0 {
		c.PoolSizeLocal = DefaultLocalQueueWorkers
	}
	if c.RunTimeoutMinutes <= 0 {
		c.RunTimeoutMinutes = DefaultRunTimeout
	}
	if c.CronIntervalSeconds <= 0 {
		c.CronIntervalSeconds = 60
	}
	return nil
}
