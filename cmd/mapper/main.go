// Command mapper resolves the current hourly Bitcoin Up or Down market and
// writes its token pair to market_map.json for the bot to trade.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"poly-volbot/internal/config"
	"poly-volbot/internal/gamma"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		gammaURL string
		outFile  string
	)
	flag.StringVar(&gammaURL, "gamma-url", "", "Gamma API base URL (default https://gamma-api.polymarket.com)")
	flag.StringVar(&outFile, "out", "market_map.json", "Output file for the market map")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Printf("[warn] %v", err)
	}
	if gammaURL == "" {
		gammaURL = strings.TrimSpace(os.Getenv("GAMMA_HOST"))
	}

	client, err := gamma.NewClient(gammaURL)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	now := time.Now()
	slug := gamma.HourlySlug(now)
	log.Printf("Resolving hourly market: %s", slug)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := client.ResolveMarketBySlug(ctx, slug)
	if err != nil {
		log.Fatalf("[fatal] resolve %s: %v", slug, err)
	}

	upID, downID := splitUpDown(res)
	title := res.Question
	if title == "" {
		title = slug
	}

	m := config.MarketMap{
		EventSlug:   res.EventSlug,
		EventTitle:  title,
		UpTokenID:   upID,
		DownTokenID: downID,
		MappedAt:    now.UTC().Format(time.RFC3339),
	}
	if err := config.SaveMarketMap(outFile, m); err != nil {
		log.Fatalf("[fatal] save %s: %v", outFile, err)
	}

	log.Printf("Market map saved to %s", outFile)
	log.Printf("  Title: %s", title)
	if res.EndDate != "" {
		log.Printf("  Ends:  %s", res.EndDate)
	}
	log.Printf("  UP token:   %s…", prefix(upID, 20))
	log.Printf("  DOWN token: %s…", prefix(downID, 20))
}

// splitUpDown maps the market's two tokens onto Up and Down. The outcome
// labels decide when present; hourly markets list Up first otherwise.
func splitUpDown(res gamma.ResolvedMarket) (up, down string) {
	up, down = res.TokenIDs[0], res.TokenIDs[1]
	for i, outcome := range res.Outcomes {
		if i >= len(res.TokenIDs) {
			break
		}
		switch strings.ToLower(strings.TrimSpace(outcome)) {
		case "up":
			up = res.TokenIDs[i]
		case "down":
			down = res.TokenIDs[i]
		}
	}
	return up, down
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
