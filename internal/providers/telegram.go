package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"alert-service/internal/logging"
	"alert-service/internal/models"
	"alert-service/internal/utils"
)

const (
	telegramAttempts = 3
	telegramDelay    = time.Second
)

// TelegramRelay posts urgent alerts to an operations chat.
type TelegramRelay struct {
	bot     *bot.Bot
	chatID  int64
	limiter *rate.Limiter
	logger  *logging.Logger
	delay   time.Duration
}

// NewTelegramRelay creates a relay for chatID, sending at most ratePerSecond messages per second.
func NewTelegramRelay(token string, chatID int64, ratePerSecond int, logger *logging.Logger, opts ...bot.Option) (*TelegramRelay, error) {
	if token == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("missing telegram chat id")
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}

	b, err := bot.New(token, append([]bot.Option{bot.WithSkipGetMe()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	return &TelegramRelay{
		bot:     b,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond),
		logger:  logger,
		delay:   telegramDelay,
	}, nil
}

// NotifyUrgent sends one message describing alert.
func (r *TelegramRelay) NotifyUrgent(ctx context.Context, alert models.Alert) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	params := &bot.SendMessageParams{
		ChatID:    r.chatID,
		Text:      formatUrgent(alert),
		ParseMode: "MarkdownV2",
	}
	return utils.Retry(ctx, r.logger, telegramAttempts, r.delay, func() error {
		if _, err := r.bot.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", r.chatID, err)
		}
		return nil
	})
}

func formatUrgent(alert models.Alert) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*URGENT alert %d*\n", alert.ID)
	fmt.Fprintf(&sb, "*Type:* %s\n", bot.EscapeMarkdown(alert.Type))
	fmt.Fprintf(&sb, "*Entity:* %d\n", alert.EntityID)
	fmt.Fprintf(&sb, "*Open since:* %s", bot.EscapeMarkdown(alert.CreatedAt.Format("2006-01-02")))
	if alert.Notes != nil && *alert.Notes != "" {
		fmt.Fprintf(&sb, "\n*Notes:* %s", bot.EscapeMarkdown(*alert.Notes))
	}
	return sb.String()
}
