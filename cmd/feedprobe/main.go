package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"robotrading/internal/feed"
	"robotrading/internal/volatility"
)

// Ручная проба фида: котировка, история, ATR. Удобно при разборе инцидентов,
// когда надо понять, фид врёт или монитор.
func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:9000", "feed REST base url")
		symbol   = flag.String("symbol", "AAPL", "ticker")
		lookback = flag.Int("lookback", 30, "bars of history")
		period   = flag.Int("atr-period", 14, "ATR period")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := feed.NewClient(*baseURL, "")

	price, err := client.GetPrice(ctx, *symbol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "price: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s last=%.4f\n", *symbol, price)

	bars, err := client.GetPriceHistory(ctx, *symbol, *lookback)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("history: %d bars\n", len(bars))

	atr, err := volatility.AverageTrueRange(bars, *period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "atr: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ATR(%d)=%.4f\n", *period, atr)
}
