package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/polytrader/internal/scheduler"
)

type fakeBot struct {
	failures int
	sent     []tgbotapi.MessageConfig
	attempts int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.attempts++
	if f.attempts <= f.failures {
		return tgbotapi.Message{}, errors.New("429 too many requests")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{1 * time.Hour, "1h"},
		{2 * time.Hour, "2h"},
		{30 * time.Minute, "30m"},
		{1 * time.Minute, "1m"},
		{12 * time.Second, "12s"},
		{250 * time.Millisecond, "250ms"},
	}

	for _, tt := range tests {
		result := formatDuration(tt.duration)
		if result != tt.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", tt.duration, result, tt.expected)
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got := escapeMarkdownV2("tick-1 (ok). done!")
	want := `tick\-1 \(ok\)\. done\!`
	if got != want {
		t.Errorf("escapeMarkdownV2 = %q, want %q", got, want)
	}
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	bot := &fakeBot{failures: 2}
	c, err := newClient(bot, "12345", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("newClient failed: %v", err)
	}

	if err := c.SendRecovery(4); err != nil {
		t.Fatalf("SendRecovery failed: %v", err)
	}
	if bot.attempts != 3 || len(bot.sent) != 1 {
		t.Fatalf("expected 3 attempts and 1 message, got %d and %d", bot.attempts, len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != 12345 || msg.ParseMode != "MarkdownV2" {
		t.Errorf("unexpected message config: chat=%d mode=%s", msg.ChatID, msg.ParseMode)
	}
	if !strings.Contains(msg.Text, "after 4 failed ticks") {
		t.Errorf("unexpected recovery text: %s", msg.Text)
	}
}

func TestSendGivesUp(t *testing.T) {
	bot := &fakeBot{failures: 10}
	c, err := newClient(bot, "1", 2, time.Millisecond)
	if err != nil {
		t.Fatalf("newClient failed: %v", err)
	}
	if err := c.SendError(errors.New("db down")); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if bot.attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", bot.attempts)
	}
}

func TestNewClientRejectsBadChatID(t *testing.T) {
	if _, err := newClient(&fakeBot{}, "not-a-number", 1, time.Second); err == nil {
		t.Fatal("expected error for invalid chat ID")
	}
}

func TestFormatError(t *testing.T) {
	got := formatError(errors.New("failed to load tenants: dial tcp"))
	if !strings.Contains(got, "Scheduler tick failed") || !strings.Contains(got, "dial tcp") {
		t.Errorf("unexpected error text: %s", got)
	}
}

func TestFormatSummary(t *testing.T) {
	s := scheduler.Summary{
		TickID:              "t-1",
		StartedAt:           time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
		UsersConsidered:     3,
		UsersExecuted:       2,
		TotalTradesExecuted: 3,
		Results: []scheduler.TenantResult{
			{TenantID: "alice_1", Status: scheduler.StatusExecuted, Trades: 1},
			{TenantID: "bob", Status: scheduler.StatusExecuted, Trades: 2},
			{TenantID: "carol", Status: scheduler.StatusError, Reason: "boom"},
		},
	}

	got := formatSummary(s, 1500*time.Millisecond)
	for _, want := range []string{
		"2026\\-05\\-01 09:30:00",
		"(1s\\)",
		"3 considered, 2 executed",
		"Trades: *3*",
		"1\\. `alice\\_1` 1 trade\n",
		"2\\. `bob` 2 trades\n",
		"1 tenant errors",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}
