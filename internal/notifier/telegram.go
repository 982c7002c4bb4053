package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

const telegramAPI = "https://api.telegram.org"

// telegramMaxLen is the Bot API limit for one message.
const telegramMaxLen = 4096

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier creates a notifier. A nil client gets a 30s timeout.
func NewTelegramNotifier(botToken, chatID string, client *http.Client, logger zerolog.Logger) *TelegramNotifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TelegramNotifier{
		BaseURL:  telegramAPI,
		BotToken: botToken,
		ChatID:   chatID,
		Client:   client,
		logger:   logger,
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.BotToken)
	payload := map[string]any{
		"chat_id":                  t.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendText sends text, split across messages when it exceeds the Bot API
// length limit.
func (t *TelegramNotifier) SendText(ctx context.Context, text string) error {
	for _, msg := range splitMessage(text, telegramMaxLen) {
		if err := t.Send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// SendAlerts posts the alert list. No message is sent for an empty list.
func (t *TelegramNotifier) SendAlerts(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return t.SendText(ctx, FormatTelegramAlerts(alerts))
}

func (t *TelegramNotifier) SendSummary(ctx context.Context, stats model.ScanStats) error {
	return t.Send(ctx, FormatTelegramSummary(stats))
}

// splitMessage cuts text on line boundaries into chunks of at most limit bytes.
// Longer lines are cut by cutPoint.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var out []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if cur.Len()+len(line) > limit && cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
		for len(line) > limit {
			i := cutPoint(line, limit)
			out = append(out, line[:i])
			line = line[i:]
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// cutPoint returns an index <= limit that is a rune boundary and not inside
// an HTML tag. A space is preferred when one is available.
func cutPoint(s string, limit int) int {
	i := limit
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	if open := strings.LastIndexByte(s[:i], '<'); open > 0 && open > strings.LastIndexByte(s[:i], '>') {
		i = open
	}
	if sp := strings.LastIndexByte(s[:i], ' '); sp > 0 {
		i = sp + 1
	}
	if i == 0 {
		return limit
	}
	return i
}
