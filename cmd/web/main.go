package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/time/rate"

	"droffers.app/internal/analytics"
	"droffers.app/internal/api"
	"droffers.app/internal/config"
	"droffers.app/internal/httpapi"
	"droffers.app/internal/microsite"
	"droffers.app/internal/obs"
	"droffers.app/internal/session"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	client, err := api.New(cfg.APIBaseURL)
	if err != nil {
		log.Fatalf("api client: %v", err)
	}

	// Token persistence: Postgres when a DSN is configured, a local file
	// otherwise.
	var db *sql.DB
	var store session.TokenStore
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		pg := session.NewPGStore(db, "default")
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("session schema: %v", err)
		}
		store = pg
	} else {
		store = session.NewFileStore(cfg.TokenPath)
	}

	sessions := session.NewManager(client, store)
	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	if err := sessions.Start(startCtx); err != nil {
		log.Printf("session restore: %v", err)
	}
	cancelStart()

	sites := microsite.NewResolver(client)
	hub := analytics.NewHub(client,
		analytics.WithDebounce(cfg.ClickDebounce),
		analytics.WithFlushLimit(rate.Limit(2), 4),
	)

	probe := httpapi.ReadyProbe{Ping: func(ctx context.Context) error {
		_, err := client.TopBrands(ctx, 1)
		return err
	}}
	app := httpapi.New(sites, client, hub, probe, version)

	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.RateLimit(
						httpapi.MaxBodyBytes(app.Handler(), 1<<20),
						cfg.RateBurst, cfg.RatePerSec)))))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting droffers-web %s on %s (upstream %s)", version, srv.Addr, cfg.APIBaseURL)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	// Final flush so counted clicks survive the restart.
	if err := hub.Close(ctx); err != nil {
		log.Printf("analytics flush: %v", err)
	}
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
