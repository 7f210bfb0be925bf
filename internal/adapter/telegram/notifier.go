// Package telegram sends bleaching alerts to a chat through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier implements pipeline.Notifier.
type Notifier struct {
	bot         sender
	chatID      int64
	site        string
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// NewNotifier authenticates the bot token. An empty endpoint means the public
// Bot API.
func NewNotifier(token string, chatID int64, endpoint, site string, logger *slog.Logger) (*Notifier, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	logger.Info("telegram notifier ready", "bot", bot.Self.UserName, "chat_id", chatID)
	return &Notifier{
		bot:         bot,
		chatID:      chatID,
		site:        site,
		maxAttempts: 3,
		retryDelay:  time.Second,
		logger:      logger,
	}, nil
}

// Notify sends one message describing st, retrying with a linear backoff.
func (n *Notifier) Notify(ctx context.Context, st domain.Status) error {
	msg := tgbotapi.NewMessage(n.chatID, formatMessage(n.site, st))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		_, err := n.bot.Send(msg)
		if err == nil {
			n.logger.Info("alert sent", "date", st.Date.Format("2006-01-02"), "alert_level", st.AlertLevel)
			return nil
		}
		lastErr = err
		n.logger.Warn("telegram send failed", "attempt", attempt, "error", err)
		if attempt == n.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.retryDelay * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("send telegram alert after %d attempts: %w", n.maxAttempts, lastErr)
}

var levelEmoji = map[domain.AlertLevel]string{
	domain.NoRisk: "🟢",
	domain.Watch:  "🟡",
	domain.Alert1: "🟠",
	domain.Alert2: "🔴",
}

// formatMessage renders a MarkdownV2 alert.
func formatMessage(site string, st domain.Status) string {
	var b strings.Builder
	title := "Coral bleaching " + string(st.AlertLevel)
	if site != "" {
		title += " at " + site
	}
	fmt.Fprintf(&b, "%s *%s*\n\n", levelEmoji[st.AlertLevel], escapeMarkdownV2(title))
	fmt.Fprintf(&b, "📅 %s\n", escapeMarkdownV2(st.Date.Format("2006-01-02")))
	fmt.Fprintf(&b, "🌡 SST %s °C \\(threshold %s, anomaly %s\\)\n",
		escapeMarkdownV2(fmt.Sprintf("%.2f", st.SST)),
		escapeMarkdownV2(fmt.Sprintf("%.2f", st.ThermalThreshold)),
		escapeMarkdownV2(fmt.Sprintf("%+.2f", st.Anomaly)))
	fmt.Fprintf(&b, "🔥 DHW %s\n", escapeMarkdownV2(fmt.Sprintf("%.2f", st.DHW)))
	if st.AlertBasis == domain.BasisScore {
		fmt.Fprintf(&b, "📊 Risk score %s \\(%s\\)\n",
			escapeMarkdownV2(fmt.Sprintf("%.1f", st.RiskScore)), escapeMarkdownV2(string(st.Strategy)))
	}
	if st.Origin == domain.OriginSimulated {
		b.WriteString("⚠️ _simulated data, remote provider unavailable_\n")
	}
	return b.String()
}

// escapeMarkdownV2 escapes the characters Telegram reserves in MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
