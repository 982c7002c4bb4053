package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

// ReportHeading introduces the final alert list.
const ReportHeading = "Here are the volume-spiking PRs of the day:"

func companyName(a model.Alert) string {
	if a.Company != "" {
		return a.Company
	}
	return a.Ticker
}

// FormatSummaryLine renders scan counters on one line.
func FormatSummaryLine(s model.ScanStats) string {
	return fmt.Sprintf("Scanned %d | Spikes %d | Cap filtered %d | Sector filtered %d | No PR %d | Fetch failed %d | Alerts %d",
		s.Scanned, s.Spikes, s.CapFiltered, s.PharmaFiltered, s.NoPR, s.FetchFailed, s.Alerts)
}

// slackEscape escapes the three characters Slack treats as control sequences.
func slackEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// FormatSlackLine renders one alert as Slack mrkdwn:
// • Company | *TICKER* | 3.5x Vol | <url|headline>
func FormatSlackLine(a model.Alert) string {
	headline := slackEscape(a.PR.Headline)
	if a.PR.URL != "" {
		headline = fmt.Sprintf("<%s|%s>", a.PR.URL, strings.ReplaceAll(headline, "|", "/"))
	}
	return fmt.Sprintf("• %s | *%s* | %.2fx Vol | %+.2f%% | %s",
		slackEscape(companyName(a)), a.Ticker, a.Spike.Multiple, a.Spike.PctChange, headline)
}

// FormatTelegramAlerts formats the alert list as a Telegram HTML message.
func FormatTelegramAlerts(alerts []model.Alert) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s</b>\n\n", html.EscapeString(ReportHeading)))
	for _, a := range alerts {
		b.WriteString(fmt.Sprintf("• %s | <b>%s</b> | %.2fx Vol | %+.2f%%\n",
			html.EscapeString(companyName(a)), a.Ticker, a.Spike.Multiple, a.Spike.PctChange))
		if a.PR.URL != "" {
			b.WriteString(fmt.Sprintf("  <a href=\"%s\">%s</a>\n", html.EscapeString(a.PR.URL), html.EscapeString(a.PR.Headline)))
		} else {
			b.WriteString(fmt.Sprintf("  %s\n", html.EscapeString(a.PR.Headline)))
		}
		if a.ChartURL != "" {
			b.WriteString(fmt.Sprintf("  <a href=\"%s\">chart</a>\n", html.EscapeString(a.ChartURL)))
		}
	}
	return b.String()
}

// FormatTelegramSummary formats scan counters for Telegram.
func FormatTelegramSummary(s model.ScanStats) string {
	return fmt.Sprintf("📊 <b>Scan complete</b>\n%s", html.EscapeString(FormatSummaryLine(s)))
}

// FormatStatus describes the most recent scan for the /status command.
func FormatStatus(r *model.ScanReport, loc *time.Location) string {
	if r == nil {
		return "No scan has run yet."
	}
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🛰 <b>Last scan</b> | %s (%s)\n", r.FinishedAt.In(loc).Format("2006-01-02 15:04"), html.EscapeString(r.RunLabel)))
	if r.Skipped {
		b.WriteString(fmt.Sprintf("Skipped: %s\n", html.EscapeString(r.SkipReason)))
		return b.String()
	}
	b.WriteString(fmt.Sprintf("PR window from %s\n", r.WindowStart.In(loc).Format("2006-01-02 15:04")))
	b.WriteString(html.EscapeString(FormatSummaryLine(r.Stats)))
	b.WriteString("\n")
	for _, a := range r.Alerts {
		b.WriteString(fmt.Sprintf("• <b>%s</b> %.2fx\n", a.Ticker, a.Spike.Multiple))
	}
	return b.String()
}
