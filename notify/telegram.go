package notify

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/util"
)

const telegramTimeout = 30 * time.Second

type telegramSender struct {
	token    string
	endpoint string
	chatID   int64

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramSender posts notifications to a telegram chat. The bot is
// authorized on the first notification.
func NewTelegramSender(conf scrapedash.TelegramConfig) Sender {
	endpoint := conf.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &telegramSender{
		token:    conf.Token,
		endpoint: endpoint,
		chatID:   conf.ChatID,
	}
}

func (s *telegramSender) Name() string { return scrapedash.SenderTelegram.String() }

func (s *telegramSender) getBot() (*tgbotapi.BotAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bot != nil {
		return s.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(s.token, s.endpoint, util.NewInstrumentedHTTPClient(telegramTimeout))
	if err != nil {
		return nil, errors.Wrap(err, "authorizing telegram bot")
	}
	s.bot = bot
	return bot, nil
}

func (s *telegramSender) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	bot, err := s.getBot()
	if err != nil {
		return err
	}

	if _, err = bot.Send(tgbotapi.NewMessage(s.chatID, n.Text())); err != nil {
		return errors.Wrapf(err, "sending telegram message to chat %d", s.chatID)
	}
	return nil
}
