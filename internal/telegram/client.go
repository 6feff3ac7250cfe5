// Package telegram sends run summaries and failure notifications via the
// Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oddsgrid/betgrader/internal/pipeline"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

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

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a fatal-run notification.
func (c *Client) SendError(runErr error) error {
	text := fmt.Sprintf("⚠️ *Grading run failed*\n`%s`", escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendSummary sends the end-of-run report.
func (c *Client) SendSummary(report *pipeline.Report) error {
	return c.sendMarkdownV2(formatSummary(report))
}

// formatSummary formats a run report into a Telegram MarkdownV2 message.
func formatSummary(report *pipeline.Report) string {
	var b strings.Builder
	b.WriteString("🎯 *Grading run complete*\n\n")
	b.WriteString(fmt.Sprintf("🆔 `%s`\n", escapeMarkdownV2(report.RunID)))
	b.WriteString(fmt.Sprintf("⏱ Duration: %s\n", escapeMarkdownV2(report.Duration.Round(time.Millisecond).String())))
	b.WriteString(fmt.Sprintf("📥 Source rows: %d\n", report.TotalSource))
	b.WriteString(fmt.Sprintf("🧮 Candidates: %d \\(%d new, %d stale\\)\n",
		report.TotalCandidates, report.TotalNew, report.TotalStale))
	b.WriteString(fmt.Sprintf("✅ Scored: %d, skipped: %d\n", report.TotalScored, report.TotalSkipped))
	b.WriteString(fmt.Sprintf("📤 Upserted: %d in %d chunks, dropped: %d\n",
		report.TotalUpserted, report.TotalChunks, report.TotalDropped))

	if len(report.Days) > 0 {
		b.WriteString("\n*By day:*\n")
		for _, day := range report.Days {
			b.WriteString(fmt.Sprintf("• %s: %d scored, %d skipped\n",
				escapeMarkdownV2(day.Day), day.Scored, day.Skipped))
		}
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
