package scrapedash

import (
	"os"
	"reflect"
	"strings"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ConfigSection defines a sub-document of the settings file.
type ConfigSection interface {
	// SectionId returns the key of the section in the settings file.
	SectionId() string
	// ValidateAndDefault validates the section, filling in defaults
	// for fields that were left empty.
	ValidateAndDefault() error
}

// Settings contains all configuration settings for running the service.
type Settings struct {
	Database DBSettings     `yaml:"database"`
	Api      APIConfig      `yaml:"api"`
	Auth     AuthConfig     `yaml:"auth"`
	Identity IdentityConfig `yaml:"identity"`
	LLM      LLMConfig      `yaml:"llm"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Storage  StorageConfig  `yaml:"storage"`
	Amboy    AmboyConfig    `yaml:"amboy"`
	Notify   NotifyConfig   `yaml:"notify"`
	Tracer   TracerConfig   `yaml:"tracer"`
	LogLevel string         `yaml:"log_level"`
	Env      string         `yaml:"env"`
	Region   string         `yaml:"region"`
}

// NewSettings builds an in-memory representation of the given settings file,
// applying secret overrides from the process environment.
func NewSettings(filename string) (*Settings, error) {
	configData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file '%s'", filename)
	}

	settings := &Settings{}
	if err = yaml.Unmarshal(configData, settings); err != nil {
		return nil, errors.Wrapf(err, "parsing settings file '%s'", filename)
	}

	settings.applyEnvOverrides()

	return settings, nil
}

func (s *Settings) applyEnvOverrides() {
	overrides := []struct {
		name string
		dst  *string
	}{
		{name: MongoURLEnvVar, dst: &s.Database.Url},
		{name: IdentityClientIDEnvVar, dst: &s.Identity.ClientID},
		{name: IdentityClientSecretEnvVar, dst: &s.Identity.ClientSecret},
		{name: OpenAIAPIKeyEnvVar, dst: &s.LLM.APIKey},
		{name: TelegramTokenEnvVar, dst: &s.Notify.Telegram.Token},
		{name: AuthSigningSecretEnvVar, dst: &s.Auth.SigningSecret},
		{name: S3AccessKeyEnvVar, dst: &s.Storage.AccessKey},
		{name: S3SecretKeyEnvVar, dst: &s.Storage.SecretKey},
	}

	for _, o := range overrides {
		if val := strings.TrimSpace(os.Getenv(o.name)); val != "" {
			*o.dst = val
		}
	}
}

// Sections returns every section of the settings document.
func (s *Settings) Sections() []ConfigSection {
	return []ConfigSection{
		&s.Database,
		&s.Api,
		&s.Auth,
		&s.Identity,
		&s.LLM,
		&s.Scraper,
		&s.Storage,
		&s.Amboy,
		&s.Notify,
		&s.Tracer,
	}
}

// Validate checks the settings and returns all of the errors found.
func (s *Settings) Validate() error {
	catcher := grip.NewBasicCatcher()
	for _, section := range s.Sections() {
		if section == nil || reflect.ValueOf(section).IsNil() {
			continue
		}
		catcher.Wrapf(section.ValidateAndDefault(), "validating section '%s'", section.SectionId())
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}

	return catcher.Resolve()
}

// IsProd returns true when the service runs in the production environment.
func (s *Settings) IsProd() bool { return s.Env == "prod" }
