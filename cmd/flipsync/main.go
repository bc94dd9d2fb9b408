package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flipsync/flipsync/core"
)

func main() {
	cfg, err := core.NewConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var opts []Option
	if url := os.Getenv("FLIPSYNC_LLM_BASE_URL"); url != "" {
		opts = append(opts, WithLLMGateway(url, os.Getenv("FLIPSYNC_LLM_API_KEY")))
	}
	for _, mp := range marketplacesFromEnv() {
		opts = append(opts, WithMarketplace(mp))
	}

	rt, err := NewRuntime(cfg, opts...)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		log.Fatalf("start runtime: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received shutdown signal: %s", sig)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := rt.Stop(stopCtx); err != nil {
		log.Fatalf("stop runtime: %v", err)
	}
}

// marketplaceNames are the well-known marketplaces FlipSync targets; each
// one's adapter credentials come from FLIPSYNC_<NAME>_BASE_URL/_API_KEY.
var marketplaceNames = []string{"ebay", "amazon", "walmart", "etsy", "facebook", "mercari"}

func marketplacesFromEnv() []MarketplaceCredentials {
	var creds []MarketplaceCredentials
	for _, name := range marketplaceNames {
		baseURL := os.Getenv("FLIPSYNC_" + envKey(name) + "_BASE_URL")
		if baseURL == "" {
			continue
		}
		creds = append(creds, MarketplaceCredentials{
			Name:    name,
			BaseURL: baseURL,
			APIKey:  os.Getenv("FLIPSYNC_" + envKey(name) + "_API_KEY"),
		})
	}
	return creds
}

func envKey(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
