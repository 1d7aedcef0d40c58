// Package alert buckets analyzed markets by implied probability and renders
// the run report and the chat alert.
package alert

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rewired-gh/polyresearch/internal/models"
)

// Report bucket bounds. Buckets overlap: a market can land in more than one.
const (
	greenMin  = 0.70
	greenMax  = 0.90
	yellowMin = 0.60
	yellowMax = 0.80
	redMax    = 0.40

	// sureBetAbove is the stricter cutoff used for the chat alert.
	sureBetAbove = 0.80
	maxSureBets  = 10

	questionWidth = 55
	ruleWidth     = 50
)

// Categorized holds the report buckets, each sorted by probability descending.
type Categorized struct {
	Green  []models.Analysis
	Yellow []models.Analysis
	Red    []models.Analysis
}

// Categorize applies the three independent bucket filters.
func Categorize(analyses []models.Analysis) Categorized {
	var c Categorized
	for _, a := range analyses {
		p := a.Probability()
		if p >= greenMin && p <= greenMax {
			c.Green = append(c.Green, a)
		}
		if p > yellowMin && p <= yellowMax {
			c.Yellow = append(c.Yellow, a)
		}
		if p <= redMax {
			c.Red = append(c.Red, a)
		}
	}
	sortByProbability(c.Green)
	sortByProbability(c.Yellow)
	sortByProbability(c.Red)
	return c
}

// SureBets returns the markets above the alert cutoff, sorted by probability
// descending.
func SureBets(analyses []models.Analysis) []models.Analysis {
	var out []models.Analysis
	for _, a := range analyses {
		if a.Probability() > sureBetAbove {
			out = append(out, a)
		}
	}
	sortByProbability(out)
	return out
}

// sortByProbability orders by probability descending, then market ID, so
// output is deterministic.
func sortByProbability(analyses []models.Analysis) {
	sort.SliceStable(analyses, func(i, j int) bool {
		pi, pj := analyses[i].Probability(), analyses[j].Probability()
		if pi != pj {
			return pi > pj
		}
		return analyses[i].MarketID < analyses[j].MarketID
	})
}

// RenderReport renders the run summary. It always succeeds.
func RenderReport(c Categorized, scanned int) string {
	var b strings.Builder
	rule := strings.Repeat("=", ruleWidth)

	b.WriteString(rule + "\n")
	b.WriteString("🎯 POLYMARKET RESEARCH RESULTS\n")
	fmt.Fprintf(&b, "Scanned %d markets\n", scanned)
	b.WriteString(rule + "\n")

	writeSection(&b, "🟢 GOOD VALUE (70-90% - BUY YES)", c.Green)
	writeSection(&b, "🟡 LIKELY (60-80%)", c.Yellow)
	writeSection(&b, "🔴 LIKELY NO (<=40%)", c.Red)

	b.WriteString("\n" + rule + "\n")
	return b.String()
}

func writeSection(b *strings.Builder, title string, analyses []models.Analysis) {
	fmt.Fprintf(b, "\n%s: %d\n", title, len(analyses))
	b.WriteString(strings.Repeat("-", 40) + "\n")
	if len(analyses) == 0 {
		b.WriteString("   none found\n")
		return
	}
	for _, a := range analyses {
		fmt.Fprintf(b, "   %s | $%s | %s\n", formatPercent(a.Probability()),
			humanize.Comma(int64(a.VolumeMetrics.Volume)), a.Recommendation.Action)
		fmt.Fprintf(b, "      %s\n", Truncate(a.Title, questionWidth))
		if a.URL != "" {
			fmt.Fprintf(b, "      🔗 %s\n", a.URL)
		}
		if a.Error != "" {
			fmt.Fprintf(b, "      ⚠️ research failed: %s\n", a.Error)
		}
	}
}

// RenderAlert renders the chat alert for the top sure bets.
func RenderAlert(analyses []models.Analysis) string {
	bets := SureBets(analyses)

	var b strings.Builder
	b.WriteString("🎯 Polymarket Research Report\n")
	b.WriteString(strings.Repeat("=", 35) + "\n")
	fmt.Fprintf(&b, "Scanned %d markets | Found %d SURE BETS\n\n", len(analyses), len(bets))

	if len(bets) == 0 {
		b.WriteString("No sure bets found this scan.")
		return b.String()
	}

	if len(bets) > maxSureBets {
		bets = bets[:maxSureBets]
	}
	b.WriteString("🟢 SURE BETS (>80% - BUY YES):\n")
	for _, a := range bets {
		fmt.Fprintf(&b, "✅ %s | $%s\n", formatPercent(a.Probability()), humanize.Comma(int64(a.VolumeMetrics.Volume)))
		fmt.Fprintf(&b, "   %s\n", a.Title)
		fmt.Fprintf(&b, "   🔗 %s\n", a.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.0f%%", p*100)
}

// Truncate shortens s to at most width runes, marking the cut with "...".
func Truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
