// Command analyze-markets fetches live quotes and prints how the research
// filters would treat them: category and volume distribution, markets passing
// each minimum-volume threshold, and a price-only preview of the alert buckets.
// It makes no LLM calls and writes nothing to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/polyresearch/internal/alert"
	"github.com/rewired-gh/polyresearch/internal/analyzer"
	"github.com/rewired-gh/polyresearch/internal/config"
	"github.com/rewired-gh/polyresearch/internal/insight"
	"github.com/rewired-gh/polyresearch/internal/models"
	"github.com/rewired-gh/polyresearch/internal/pipeline"
	"github.com/rewired-gh/polyresearch/internal/polymarket"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	limit      = flag.Int("limit", 500, "Number of markets to fetch")
)

var thresholds = []float64{10_000, 50_000, 100_000, 250_000, 500_000, 1_000_000, 5_000_000}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client := polymarket.NewClient(polymarket.Options{
		APIBaseURL:     cfg.Polymarket.GammaAPIURL,
		MarketBaseURL:  cfg.Polymarket.MarketBaseURL,
		Timeout:        cfg.Polymarket.Timeout,
		MaxRetries:     cfg.Polymarket.MaxRetries,
		RetryDelayBase: cfg.Polymarket.RetryDelayBase,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	quotes, err := client.FetchQuotes(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to fetch markets: %v", err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("POLYMARKET MARKET ANALYSIS - %d active markets\n", len(quotes))
	fmt.Println(strings.Repeat("=", 80))

	printCategories(quotes)
	printThresholds(quotes, cfg.Research.MinVolume)
	printBucketPreview(quotes, cfg.Research.MinVolume, cfg.Research.MaxMarketsPerRun)
}

func printCategories(quotes []models.Quote) {
	type catStats struct {
		name     string
		count    int
		totalVol float64
		maxVol   float64
	}

	byName := make(map[string]*catStats)
	for _, q := range quotes {
		name := strings.ToLower(q.Category)
		if name == "" {
			name = "(none)"
		}
		s, ok := byName[name]
		if !ok {
			s = &catStats{name: name}
			byName[name] = s
		}
		s.count++
		s.totalVol += q.Volume
		if q.Volume > s.maxVol {
			s.maxVol = q.Volume
		}
	}

	stats := make([]*catStats, 0, len(byName))
	for _, s := range byName {
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].totalVol > stats[j].totalVol
	})

	fmt.Printf("\n%-20s %-10s %-20s %-20s\n", "Category", "Markets", "Total Volume", "Max Volume")
	fmt.Println(strings.Repeat("-", 70))
	for _, s := range stats {
		fmt.Printf("%-20s %-10d $%-19s $%-19s\n", s.name, s.count,
			humanize.Comma(int64(s.totalVol)), humanize.Comma(int64(s.maxVol)))
	}
}

func printThresholds(quotes []models.Quote, configured float64) {
	if len(quotes) == 0 {
		return
	}

	fmt.Printf("\nMarkets passing minimum volume:\n")
	fmt.Printf("%-15s %-10s %-10s\n", "Min volume", "Count", "Share")
	fmt.Println(strings.Repeat("-", 40))
	for _, t := range thresholds {
		n := len(pipeline.Select(quotes, t, 0))
		marker := ""
		if t == configured {
			marker = "  <- configured"
		}
		fmt.Printf("$%-14s %-10d %.1f%%%s\n", humanize.Comma(int64(t)), n, float64(n)/float64(len(quotes))*100, marker)
	}
}

// printBucketPreview runs the analyzer with price-only research, so the
// buckets show where markets land before any provider weighs in.
func printBucketPreview(quotes []models.Quote, minVolume float64, maxMarkets int) {
	selected := pipeline.Select(quotes, minVolume, maxMarkets)

	analyses := make([]models.Analysis, 0, len(selected))
	for _, q := range selected {
		opinion := insight.Fallback(q)
		insights := insight.Aggregate([]models.ProviderOpinion{opinion})
		record := &models.ResearchRecord{
			MarketID:   q.ID,
			Title:      q.Question,
			URL:        q.URL,
			CreatedAt:  time.Now().UTC(),
			Insights:   &insights,
			Confidence: insight.MeanConfidence([]models.ProviderOpinion{opinion}),
		}
		analyses = append(analyses, analyzer.Evaluate(q, record))
	}

	fmt.Printf("\nPrice-only preview of the next run (min volume $%s, cap %d):\n",
		humanize.Comma(int64(minVolume)), maxMarkets)
	fmt.Print(alert.RenderReport(alert.Categorize(analyses), len(analyses)))
	fmt.Printf("\nWould alert on %d sure bets\n", len(alert.SureBets(analyses)))
}
