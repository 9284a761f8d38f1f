package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/darknetduel/client/internal/config"
	"github.com/darknetduel/client/internal/domain"
	"github.com/go-telegram/bot"
)

const MaxMessageLen = 4096

// Notifier posts purchase outcomes to an ops chat, one forum topic per log type.
type Notifier struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewNotifier(b *bot.Bot, cfg *config.Config) *Notifier {
	return &Notifier{bot: b, cfg: cfg}
}

type LogType string

const (
	LogTypeError    LogType = "error"
	LogTypePurchase LogType = "purchase"
)

func (n *Notifier) Log(logType LogType, message string) {
	if n.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := n.getTopicID(logType)
	if topicID == 0 {
		return
	}

	// Truncate if too long
	if len([]rune(message)) > MaxMessageLen {
		message = FixMarkdown(string([]rune(message)[:MaxMessageLen-20])) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.NotifyTimeout)
	defer cancel()

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          n.cfg.LogTelegramChatID,
		Text:            message,
		ParseMode:       "Markdown",
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

func (n *Notifier) PurchaseSucceeded(attempt domain.PurchaseAttempt) {
	msg := fmt.Sprintf("💰 *Crypts Purchase*\n\n*Attempt:* `%s`\n*Package:* `%s`\n*Invoice:* `%s`",
		attempt.ID, codeSafe(attempt.PackageID), codeSafe(attempt.InvoiceID))
	if attempt.Result != nil {
		msg += fmt.Sprintf("\n*Crypts:* %s\n*New balance:* %s",
			attempt.Result.Crypts.String(), attempt.Result.NewBalance.String())
	}
	n.Log(LogTypePurchase, msg)
}

func (n *Notifier) PurchaseFailed(attempt domain.PurchaseAttempt, err error) {
	if attempt.State == domain.FlowStateCancelled {
		msg := fmt.Sprintf("🚫 *Purchase Cancelled*\n\n*Attempt:* `%s`\n*Package:* `%s`\n*Invoice:* `%s`",
			attempt.ID, codeSafe(attempt.PackageID), codeSafe(attempt.InvoiceID))
		n.Log(LogTypePurchase, msg)
		return
	}

	msg := fmt.Sprintf("❌ *Purchase Failed*\n\n*Attempt:* `%s`\n*Package:* `%s`\n*Invoice:* `%s`\n*Error:* `%s`\n*Time:* %s",
		attempt.ID, codeSafe(attempt.PackageID), codeSafe(attempt.InvoiceID), codeSafe(err.Error()),
		attempt.UpdatedAt.Format(time.DateTime))
	n.Log(LogTypeError, msg)
}

func (n *Notifier) getTopicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return n.cfg.LogTopicError
	case LogTypePurchase:
		return n.cfg.LogTopicPurchase
	default:
		return 0
	}
}

// codeSafe keeps s from closing an inline code span.
func codeSafe(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "`", "'")
}
