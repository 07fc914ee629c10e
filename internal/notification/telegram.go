// Package notification delivers reports to Telegram channels.
package notification

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	internalerrors "github.com/olegiv/seclog-ai-go/internal/errors"
	"github.com/olegiv/seclog-ai-go/internal/model"
	"github.com/olegiv/seclog-ai-go/internal/report"
)

const (
	maxMessageLength = 4096
	// minMessageInterval is the minimum time between messages to the same channel
	// to avoid Telegram rate limits
	minMessageInterval = 1 * time.Second
	// maxRetries is the maximum number of retry attempts for sending messages
	maxRetries = 3
	// baseRetryDelay is the initial delay between retries (doubles each attempt)
	baseRetryDelay = 2 * time.Second
	// maxListedEvents caps the security events listed in one report
	maxListedEvents = 20
)

// sender is the part of the bot API used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramClient handles Telegram notifications
type TelegramClient struct {
	bot             sender
	username        string
	archiveChannel  int64
	alertsChannel   int64
	hostname        string
	lastMessageTime time.Time
	sleep           func(ctx context.Context, d time.Duration) error
}

// NewTelegramClient creates a new Telegram client
func NewTelegramClient(botToken string, archiveChannel, alertsChannel int64) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		// The token is part of the request URL and must not leak
		return nil, internalerrors.Wrapf(err, "failed to create Telegram bot")
	}

	client := newClient(bot, archiveChannel, alertsChannel)
	client.username = bot.Self.UserName
	return client, nil
}

func newClient(bot sender, archiveChannel, alertsChannel int64) *TelegramClient {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &TelegramClient{
		bot:            bot,
		archiveChannel: archiveChannel,
		alertsChannel:  alertsChannel,
		hostname:       hostname,
		sleep:          sleepContext,
	}
}

// Name implements report.Sink.
func (t *TelegramClient) Name() string {
	return "telegram"
}

// Deliver implements report.Sink. The report always goes to the archive
// channel and also to the alerts channel when it contains HIGH events.
func (t *TelegramClient) Deliver(ctx context.Context, doc *report.Document) error {
	message := t.formatMessage(doc)

	if err := t.sendToChannel(ctx, t.archiveChannel, message); err != nil {
		return fmt.Errorf("failed to send to archive channel: %w", err)
	}

	if t.alertsChannel != 0 && ShouldAlert(doc) {
		if err := t.sendToChannel(ctx, t.alertsChannel, message); err != nil {
			return fmt.Errorf("failed to send to alerts channel: %w", err)
		}
	}

	return nil
}

// ShouldAlert reports whether a document warrants the alerts channel.
func ShouldAlert(doc *report.Document) bool {
	for _, e := range doc.SecurityEntries {
		if e.Severity == model.SeverityHigh {
			return true
		}
	}
	return false
}

// outcomeEmoji returns the status marker for an outcome.
func outcomeEmoji(outcome report.Outcome) string {
	switch outcome {
	case report.OutcomeSummarized:
		return "🔴"
	case report.OutcomeDegraded:
		return "🟠"
	case report.OutcomeError:
		return "⚠️"
	default:
		return "🟢"
	}
}

// formatMessage formats the report into a MarkdownV2 message
func (t *TelegramClient) formatMessage(doc *report.Document) string {
	const formattedListTemplate = "%d\\. %s\n"

	var msg strings.Builder

	// Header
	msg.WriteString("🔍 *Security Log Report*\n")
	msg.WriteString(fmt.Sprintf("🖥 Host\\: %s\n", escapeMarkdown(t.hostname)))
	msg.WriteString(fmt.Sprintf("📅 Date\\: %s\n", escapeMarkdown(doc.GeneratedAt.Format("2006-01-02 15:04:05"))))
	if doc.Source != "" {
		msg.WriteString(fmt.Sprintf("📄 Source\\: %s\n", escapeMarkdown(doc.Source)))
	}
	msg.WriteString(fmt.Sprintf("%s *Outcome\\:* %s\n\n", outcomeEmoji(doc.Outcome), escapeMarkdown(string(doc.Outcome))))

	// Execution Stats
	counts := model.CountBySeverity(doc.SecurityEntries)
	msg.WriteString("📋 *Execution Stats*\n")
	msg.WriteString(fmt.Sprintf("• Entries\\: %d\n", len(doc.AllEntries)))
	msg.WriteString(fmt.Sprintf("• Security Events\\: %d\n", len(doc.SecurityEntries)))
	msg.WriteString(fmt.Sprintf("• High\\: %d\n", counts[model.SeverityHigh.String()]))
	msg.WriteString(fmt.Sprintf("• Medium\\: %d\n", counts[model.SeverityMedium.String()]))
	if doc.Provider != "" {
		msg.WriteString(fmt.Sprintf("• Provider\\: %s\n", escapeMarkdown(doc.Provider)))
	}
	msg.WriteString(fmt.Sprintf("• Duration\\: %s\n", escapeMarkdown(fmt.Sprintf("%.2fs", doc.Duration.Seconds()))))
	msg.WriteString("\n")

	// Summary
	msg.WriteString("📊 *Summary*\n")
	msg.WriteString(escapeMarkdown(summaryText(doc)))
	msg.WriteString("\n\n")

	// Security events
	if len(doc.SecurityEntries) > 0 {
		msg.WriteString(fmt.Sprintf("🔴 *Security Events* \\(%d\\)\n", len(doc.SecurityEntries)))
		for i, e := range doc.SecurityEntries {
			if i == maxListedEvents {
				msg.WriteString(escapeMarkdown(fmt.Sprintf("... and %d more", len(doc.SecurityEntries)-maxListedEvents)))
				msg.WriteString("\n")
				break
			}
			msg.WriteString(fmt.Sprintf(formattedListTemplate, i+1, escapeMarkdown(e.Line(true))))
		}
	}

	return msg.String()
}

func summaryText(doc *report.Document) string {
	switch doc.Outcome {
	case report.OutcomeNoEntries:
		return report.NoEntriesMessage
	case report.OutcomeNoSecurityEvents:
		return report.NoSecurityEventsMessage
	case report.OutcomeError:
		return "Error: " + doc.Error
	case report.OutcomeDegraded:
		return doc.Note
	default:
		return doc.Summary
	}
}

// sendToChannel sends a message to a Telegram channel with rate limiting
func (t *TelegramClient) sendToChannel(ctx context.Context, channelID int64, message string) error {
	messages := t.splitMessage(message)

	for _, msg := range messages {
		if err := t.waitForRateLimit(ctx); err != nil {
			return err
		}

		msgConfig := tgbotapi.NewMessage(channelID, msg)
		msgConfig.ParseMode = "MarkdownV2"

		if err := t.sendWithRetry(ctx, msgConfig); err != nil {
			return err
		}

		t.lastMessageTime = time.Now()
	}

	return nil
}

// waitForRateLimit ensures minimum interval between messages
func (t *TelegramClient) waitForRateLimit(ctx context.Context) error {
	if t.lastMessageTime.IsZero() {
		return nil
	}

	elapsed := time.Since(t.lastMessageTime)
	if elapsed < minMessageInterval {
		return t.sleep(ctx, minMessageInterval-elapsed)
	}
	return nil
}

// sendWithRetry sends a message with exponential backoff retry
func (t *TelegramClient) sendWithRetry(ctx context.Context, msgConfig tgbotapi.MessageConfig) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := t.bot.Send(msgConfig)
		if err == nil {
			return nil
		}

		lastErr = err

		if isRateLimitError(err) {
			if retryAfter := extractRetryAfter(err); retryAfter > 0 {
				if err := t.sleep(ctx, time.Duration(retryAfter)*time.Second); err != nil {
					return err
				}
				continue
			}
		}

		if attempt < maxRetries {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1)) // 2s, 4s, 8s...
			if err := t.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	// The bot token can appear in transport errors
	return internalerrors.Wrapf(lastErr, "failed to send message after %d retries", maxRetries)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isRateLimitError checks if the error is a Telegram rate limit error (429)
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests")
}

// extractRetryAfter extracts the retry_after value from a rate limit error
func extractRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	// Example: "Too Many Requests: retry after 30"
	errStr := err.Error()

	if idx := strings.Index(strings.ToLower(errStr), "retry after "); idx != -1 {
		remaining := errStr[idx+len("retry after "):]
		var seconds int
		if _, err := fmt.Sscanf(remaining, "%d", &seconds); err == nil {
			return seconds
		}
	}

	return 30
}

// splitMessage splits a long message into multiple messages
func (t *TelegramClient) splitMessage(message string) []string {
	if len(message) <= maxMessageLength {
		return []string{message}
	}

	var messages []string
	lines := strings.Split(message, "\n")
	var currentMsg strings.Builder

	for _, line := range lines {
		if currentMsg.Len()+len(line)+1 > maxMessageLength {
			if currentMsg.Len() > 0 {
				messages = append(messages, currentMsg.String())
				currentMsg.Reset()
			}

			// A single oversized line is cut into fixed chunks
			if len(line) > maxMessageLength {
				for i := 0; i < len(line); i += maxMessageLength {
					end := i + maxMessageLength
					if end > len(line) {
						end = len(line)
					}
					messages = append(messages, line[i:end])
				}
				continue
			}
		}

		currentMsg.WriteString(line)
		currentMsg.WriteString("\n")
	}

	if currentMsg.Len() > 0 {
		messages = append(messages, currentMsg.String())
	}

	return messages
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2
func escapeMarkdown(text string) string {
	// See: https://core.telegram.org/bots/api#markdownv2-style
	specialChars := []string{
		"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!", ":",
	}

	result := text
	for _, char := range specialChars {
		result = strings.ReplaceAll(result, char, "\\"+char)
	}

	return result
}

// GetBotInfo returns information about the bot
func (t *TelegramClient) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username":        t.username,
		"archive_channel": t.archiveChannel,
		"alerts_channel":  t.alertsChannel,
		"hostname":        t.hostname,
	}
}
