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

	"github.com/rs/zerolog"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

// slackSectionMax keeps each section under Slack's 3000 character text limit.
const slackSectionMax = 2900

// SlackNotifier posts block messages to an incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
	logger     zerolog.Logger
}

// NewSlackNotifier creates a notifier. A nil client gets a 30s timeout.
func NewSlackNotifier(webhookURL string, client *http.Client, logger zerolog.Logger) *SlackNotifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SlackNotifier{WebhookURL: webhookURL, Client: client, logger: logger}
}

func (s *SlackNotifier) Name() string { return "slack" }

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

func section(text string) slackBlock {
	return slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}}
}

// alertBlocks builds the final report: heading, divider, then the alert
// list in as many sections as needed.
func alertBlocks(alerts []model.Alert) []slackBlock {
	blocks := []slackBlock{
		section("*" + ReportHeading + "*"),
		{Type: "divider"},
	}
	var cur strings.Builder
	for _, a := range alerts {
		line := FormatSlackLine(a) + "\n"
		if cur.Len()+len(line) > slackSectionMax && cur.Len() > 0 {
			blocks = append(blocks, section(cur.String()))
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		blocks = append(blocks, section(cur.String()))
	}
	return blocks
}

// SendAlerts posts the final report. No message is sent for an empty list.
func (s *SlackNotifier) SendAlerts(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	s.logger.Debug().Int("alerts", len(alerts)).Msg("posting slack report")
	return s.post(ctx, slackMessage{
		Text:   fmt.Sprintf("%d volume-spiking PRs", len(alerts)),
		Blocks: alertBlocks(alerts),
	})
}

func (s *SlackNotifier) SendSummary(ctx context.Context, stats model.ScanStats) error {
	line := FormatSummaryLine(stats)
	return s.post(ctx, slackMessage{
		Text: line,
		Blocks: []slackBlock{
			{Type: "context", Elements: []slackText{{Type: "mrkdwn", Text: line}}},
		},
	})
}

func (s *SlackNotifier) post(ctx context.Context, msg slackMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
