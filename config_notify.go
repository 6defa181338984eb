package scrapedash

import "github.com/pkg/errors"

// NotifyConfig configures run completion notifications.
type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
	// APIEndpoint overrides the bot API URL format, which takes the token
	// and the method name.
	APIEndpoint string `yaml:"api_endpoint"`
}

// Enabled returns true when telegram notifications are configured.
func (c *TelegramConfig) Enabled() bool { return c.Token != "" }

func (c *NotifyConfig) SectionId() string { return "notify" }

func (c *NotifyConfig) ValidateAndDefault() error {
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram notifications require a chat ID")
	}
	return nil
}
