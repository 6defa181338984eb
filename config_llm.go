package scrapedash

import (
	"time"

	"github.com/pkg/errors"
)

// LLMConfig configures the extraction and summarization model calls.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// TimeoutSecs bounds a single completion request.
	TimeoutSecs int `yaml:"timeout_secs"`
}

func (c *LLMConfig) SectionId() string { return "llm" }

func (c *LLMConfig) ValidateAndDefault() error {
	if c.TimeoutSecs <= 0 {
		c.TimeoutSecs = DefaultLLMTimeoutSecs
	}
	return nil
}

func (c *LLMConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// ScraperConfig configures page fetching.
type ScraperConfig struct {
	UserAgent     string `yaml:"user_agent"`
	MaxRetries    int    `yaml:"max_retries"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
	MaxFetchBytes int64  `yaml:"max_fetch_bytes"`
	DisableCache  bool   `yaml:"disable_cache"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/86.0.4240.111 Safari/537.36"

func (c *ScraperConfig) SectionId() string { return "scraper" }

func (c *ScraperConfig) ValidateAndDefault() error {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.TimeoutSecs <= 0 {
		c.TimeoutSecs = 30
	}
	if c.MaxFetchBytes <= 0 {
		c.MaxFetchBytes = DefaultMaxFetchBytes
	}
	return nil
}

func (c *ScraperConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }
