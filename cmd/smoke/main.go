package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"droffers.app/internal/analytics"
	"droffers.app/internal/api"
	"droffers.app/internal/microsite"
	"droffers.app/internal/session"
)

func main() {
	base := os.Getenv("DROFFERS_API_URL")
	if base == "" {
		base = "http://localhost:3000"
	}

	client, err := api.New(base)
	if err != nil {
		log.Fatalf("api client: %v", err)
	}
	sessions := session.NewManager(client, session.NewMemoryStore())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Credentials are optional: the public surface works anonymously.
	email, password := os.Getenv("DROFFERS_SMOKE_EMAIL"), os.Getenv("DROFFERS_SMOKE_PASSWORD")
	if email != "" {
		if err := sessions.Login(ctx, email, password); err != nil {
			log.Fatalf("login %s: %v", email, err)
		}
		fmt.Printf("logged in as %s (role %s)\n", email, sessions.Role())
	}

	brands, err := client.TopBrands(ctx, 5)
	if err != nil {
		log.Fatalf("top brands: %v", err)
	}
	if len(brands) == 0 {
		log.Fatal("no brands published upstream")
	}
	fmt.Printf("top brands: %d\n", len(brands))

	offers, err := client.BestOffers(ctx, 5)
	if err != nil {
		log.Fatalf("best offers: %v", err)
	}
	fmt.Printf("best offers: %d\n", len(offers))

	target := brands[0]
	resolver := microsite.NewResolver(client)
	site, err := resolver.Resolve(ctx, target.Slug)
	if err != nil {
		log.Fatalf("resolve micro-site %s: %v", target.Slug, err)
	}
	fmt.Printf("resolved /b/%s -> %s layout, %d grid tiles\n", site.Slug, site.Variant, len(site.Grid))

	// Click burst: seven clicks inside one debounce window must leave as a
	// single batched delivery.
	rec := analytics.NewRecorder(client, site.BrandID, analytics.WithDebounce(50*time.Millisecond))
	if err := rec.RecordView(ctx); err != nil {
		log.Fatalf("record view: %v", err)
	}
	for i := 0; i < 7; i++ {
		rec.Click()
	}
	if err := rec.Close(ctx); err != nil {
		log.Fatalf("flush clicks: %v", err)
	}
	if rec.Pending() != 0 {
		log.Fatalf("clicks left behind after flush: %d", rec.Pending())
	}

	fmt.Printf("✅ smoke test passed: brand=%s\n", site.BrandID)
}
