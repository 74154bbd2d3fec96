package announce

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"texwatch/src/features/compiling"
	"texwatch/src/features/config"
)

// TelegramAnnouncer pushes build outcomes to a Telegram chat. Useful when a
// long document compiles while the operator is away from the terminal.
type TelegramAnnouncer struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramAnnouncer creates an announcer from the telegram config section.
func NewTelegramAnnouncer(cfg *config.Config) (*TelegramAnnouncer, error) {
	if !cfg.Telegram.Enabled {
		return nil, fmt.Errorf("telegram announcements are disabled in configuration")
	}
	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram bot token is not configured")
	}
	if cfg.Telegram.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is not configured")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	slog.Info("Telegram announcer initialized", "username", bot.Self.UserName)

	return &TelegramAnnouncer{bot: bot, chatID: cfg.Telegram.ChatID}, nil
}

// Announce sends one message per completed build attempt. Delivery failures
// are logged and swallowed; announcements never disturb the pipeline.
func (t *TelegramAnnouncer) Announce(outcome compiling.Outcome) {
	var text string
	switch outcome.Kind {
	case compiling.Success:
		text = "✓ Compilation successful"
	case compiling.CompileFailure:
		lines := compiling.ErrorLines(outcome.Log)
		if len(lines) > 0 {
			text = "✗ Compilation failed:\n" + strings.Join(lines, "\n")
		} else {
			text = "✗ Compilation failed"
		}
	case compiling.TransportFailure:
		text = fmt.Sprintf("✗ Compilation server unreachable: %v", outcome.Err)
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		slog.Warn("Failed to send telegram announcement", "error", err)
	}
}
