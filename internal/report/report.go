// Package report renders portfolio overviews for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/solana-portfolio/internal/activity"
	"github.com/rovshanmuradov/solana-portfolio/internal/amount"
	"github.com/rovshanmuradov/solana-portfolio/internal/portfolio"
	"github.com/rovshanmuradov/solana-portfolio/internal/tracker"
)

// MaxActivityRows caps the rendered activity feed.
const MaxActivityRows = 10

// Overview renders balances, alerts and recent activity.
func Overview(ov *tracker.Overview, tokenSymbol string, now time.Time) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Portfolio " + shorten(ov.Wallet)))
	b.WriteString("\n")

	for _, a := range ov.Alerts {
		b.WriteString(alertStyle.Render(warningStyle.Render(a.Title) + "\n" + a.Message))
		b.WriteString("\n")
	}

	b.WriteString(panelStyle.Render(balances(ov, tokenSymbol, now)))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(feed(ov.Activity)))
	b.WriteString("\n")
	return b.String()
}

func balances(ov *tracker.Overview, tokenSymbol string, now time.Time) string {
	snap := ov.Snapshot
	rows := []string{
		row("SOL", amount.FormatAmount(amount.Some(snap.SOLBalance), amount.DefaultAmountDigits)),
		row(tokenSymbol, amount.FormatAmount(amount.Some(snap.BittyBalance), amount.DefaultAmountDigits)),
		row("Value", amount.FormatCurrency(ov.ValueUSD, amount.DefaultCurrencyDigits)),
		row("SOL price", amount.FormatCurrency(ov.SOLPriceUSD, amount.DefaultCurrencyDigits)),
		row("Updated", updated(snap, now)),
	}
	return strings.Join(rows, "\n")
}

func updated(snap portfolio.Snapshot, now time.Time) string {
	age, ok := snap.Stale(now)
	if !ok {
		return mutedStyle.Render("never")
	}
	when := snap.LastUpdated.Local().Format("2006-01-02 15:04:05")
	if snap.Source == portfolio.SourceLive {
		return when + " " + successStyle.Render("live")
	}
	return when + " " + warningStyle.Render(fmt.Sprintf("cached, %s old", age.Round(time.Second)))
}

func feed(entries []activity.Entry) string {
	if len(entries) == 0 {
		return mutedStyle.Render("No activity yet")
	}

	lines := make([]string, 0, MaxActivityRows+1)
	for i, e := range entries {
		if i == MaxActivityRows {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("… %d more", len(entries)-MaxActivityRows)))
			break
		}
		lines = append(lines, entryLine(e))
	}
	return strings.Join(lines, "\n")
}

func entryLine(e activity.Entry) string {
	ts := amount.Placeholder
	if e.HasTimestamp() {
		ts = e.Timestamp.Local().Format("01-02 15:04")
	}

	line := lipgloss.JoinHorizontal(lipgloss.Top,
		mutedStyle.Width(12).Render(ts),
		statusStyle(e.Status).Width(9).Render(string(e.Status)),
		valueStyle.Render(e.Label),
	)
	if e.Detail != "" {
		line += " " + mutedStyle.Render(e.Detail)
	}
	if e.Link != "" {
		line += "\n" + strings.Repeat(" ", 21) + linkStyle.Render(e.Link)
	}
	return line
}

func statusStyle(s activity.Status) lipgloss.Style {
	switch s {
	case activity.StatusSuccess:
		return successStyle
	case activity.StatusError:
		return errorStyle
	default:
		return warningStyle
	}
}

// Quote renders a reconciled swap quote.
func Quote(check *tracker.QuoteCheck, tokenSymbol string) string {
	in := check.Insights
	pct := amount.FormatPercent(in.PercentDiff, amount.DefaultPercentDigits)
	if in.PercentDiff.Valid && in.PercentDiff.Value < 0 {
		pct = errorStyle.Render(pct)
	} else {
		pct = successStyle.Render(pct)
	}

	rows := []string{
		row("Input", amount.FormatAmount(amount.Some(check.InputSOL), amount.DefaultAmountDigits)+" SOL"),
		row("Quoted", amount.FormatAmount(amount.Some(in.QuotedOutput), amount.DefaultAmountDigits)+" "+tokenSymbol),
		row("Benchmark", amount.FormatAmount(amount.Some(in.BenchmarkOutput), amount.DefaultAmountDigits)+" "+tokenSymbol),
		row("Difference", amount.FormatAmount(amount.Some(in.Difference), amount.DefaultAmountDigits)+" "+pct),
		row("Implied", amount.FormatAmount(in.ImpliedPriceNative, amount.DefaultAmountDigits)+" "+tokenSymbol+"/SOL"),
		row("USD value", amount.FormatCurrency(in.USDValue, amount.DefaultCurrencyDigits)),
	}
	body := strings.Join(rows, "\n")
	if check.Alert {
		body += "\n" + warningStyle.Render("Quote is worse than the benchmark beyond tolerance")
	}
	return titleStyle.Render("Swap quote") + "\n" + panelStyle.Render(body) + "\n"
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func shorten(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}
