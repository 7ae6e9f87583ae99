// Package telegram sends operator notifications about scheduler ticks via the
// Telegram Bot API: the first failure of a run of failed ticks, the recovery
// that ends it, and optional summaries of ticks that placed trades.
//
// Messages use MarkdownV2 and are retried with linear backoff.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/polytrader/internal/scheduler"
)

// maxListedTenants caps the per-tenant lines in a summary message.
const maxListedTenants = 10

// sender is the part of *tgbotapi.BotAPI the client uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendError reports a failed tick
func (c *Client) SendError(err error) error {
	return c.send(formatError(err))
}

// SendRecovery reports that ticks succeed again after failures consecutive failures
func (c *Client) SendRecovery(failures int) error {
	return c.send(formatRecovery(failures))
}

// SendSummary reports a tick that executed trades
func (c *Client) SendSummary(summary scheduler.Summary, elapsed time.Duration) error {
	return c.send(formatSummary(summary, elapsed))
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

func formatError(err error) string {
	return fmt.Sprintf("🚨 *Scheduler tick failed*\n\n`%s`", escapeMarkdownV2(scheduler.TruncateError(err.Error())))
}

func formatRecovery(failures int) string {
	noun := "ticks"
	if failures == 1 {
		noun = "tick"
	}
	return fmt.Sprintf("✅ *Scheduler recovered* after %d failed %s", failures, noun)
}

func formatSummary(s scheduler.Summary, elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString("📊 *Tick summary*\n\n")
	fmt.Fprintf(&b, "🕒 %s \\(%s\\)\n", escapeMarkdownV2(s.StartedAt.UTC().Format("2006-01-02 15:04:05")), escapeMarkdownV2(formatDuration(elapsed)))
	fmt.Fprintf(&b, "Tenants: %d considered, %d executed\n", s.UsersConsidered, s.UsersExecuted)
	fmt.Fprintf(&b, "Trades: *%d*\n", s.TotalTradesExecuted)

	listed := 0
	errored := 0
	for _, r := range s.Results {
		if r.Status == scheduler.StatusError {
			errored++
		}
		if r.Status != scheduler.StatusExecuted || listed == maxListedTenants {
			continue
		}
		if listed == 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\\. `%s` %d trade", listed+1, escapeMarkdownV2(r.TenantID), r.Trades)
		if r.Trades != 1 {
			b.WriteString("s")
		}
		b.WriteString("\n")
		listed++
	}
	if errored > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d tenant errors\n", errored)
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d >= time.Second:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}
