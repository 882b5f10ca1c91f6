package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rehearsal/api/internal/app"
	"rehearsal/api/internal/attendance"
	"rehearsal/api/internal/catalog"
	"rehearsal/api/internal/config"
	"rehearsal/api/internal/dedupe"
	"rehearsal/api/internal/email"
	"rehearsal/api/internal/ledger"
	"rehearsal/api/internal/lock"
	"rehearsal/api/internal/search"
	"rehearsal/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	dataStore := store.NewPostgresStore(db)

	fallback := ledger.Options{Activities: cfg.Activities, TimeSlots: cfg.TimeSlots}
	handle, err := ledger.Open(ctx, ledger.OpenConfig{
		Backend: cfg.LedgerBackend,
		Sheets: ledger.SheetsConfig{
			SpreadsheetID: cfg.SheetsID,
			ClientEmail:   cfg.SheetsEmail,
			PrivateKey:    cfg.SheetsPrivateKey,
			ConfigRange:   cfg.SheetsConfigRange,
			Timeout:       cfg.LedgerTimeout,
		},
		SQLitePath:  cfg.SQLitePath,
		OptionsFile: cfg.OptionsFile,
		Fallback:    fallback,
	})
	if err != nil {
		log.Fatalf("ledger setup failed: %v", err)
	}
	defer handle.Close()

	resolver, err := attendance.LoadResolver(cfg.Timezone)
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}
	thresholds := attendance.Thresholds{Present: float64(cfg.PresentMinutes), Late: float64(cfg.LateMinutes)}
	if err := thresholds.Validate(); err != nil {
		log.Fatalf("thresholds: %v", err)
	}

	registry := catalog.NewRegistry(handle.Options, fallback)
	if err := registry.Refresh(ctx); err != nil {
		log.Printf("WARNING: initial options load failed (will retry on schedule): %v", err)
	} else if opts, _ := registry.Options(ctx); len(opts.Activities) == 0 {
		log.Printf("WARNING: no activities configured; submissions are refused until the options list is filled")
	}
	if err := registry.Start(cfg.OptionsSchedule); err != nil {
		log.Fatalf("options refresh schedule: %v", err)
	}
	defer registry.Stop()

	checks := map[string]app.Check{
		"postgres": dataStore.Ping,
		"ledger":   handle.Ping,
		"options": func(ctx context.Context) error {
			_, err := handle.Options.Options(ctx)
			return err
		},
	}

	var (
		serializer lock.Serializer
		requests   dedupe.Store
	)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for ledger locks and request keys")
		client, err := dedupe.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer client.Close()
		serializer = lock.NewRedis(client, cfg.LockTTL)
		redisStore := dedupe.NewRedisStore(client, cfg.IdempotencyTTL)
		requests = redisStore
		checks["redis"] = redisStore.Ping
	} else {
		log.Printf("Using in-process ledger locks and PostgreSQL request keys")
		serializer = lock.NewLocal()
		requests = store.NewIdempotencyStore(db, cfg.IdempotencyTTL)
	}

	var searchService *search.Service
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		searchService = search.NewService(meiliClient, search.NewPgSearch(dataStore))
		go searchService.Backfill(context.Background(), 1000)
	} else {
		searchService = search.NewService(nil, search.NewPgSearch(dataStore))
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	alerts := email.NewAlerter(mailer, cfg.AlertEmails, time.Hour)
	if !alerts.Enabled() {
		log.Printf("Sheet drift alerts disabled (SMTP or ALERT_EMAILS not configured)")
	}

	service, err := app.NewService(app.Deps{
		Ledger:     handle.Gateway,
		Catalog:    registry,
		Lock:       serializer,
		Requests:   requests,
		Audit:      dataStore,
		Search:     searchService,
		Alerts:     alerts,
		Resolver:   resolver,
		Classifier: attendance.NewClassifier(thresholds),
		Checks:     checks,
	})
	if err != nil {
		log.Fatalf("service setup failed: %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.LedgerTimeout*2 + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Attendance ledger API listening on %s (%s backend)", cfg.Addr, cfg.LedgerBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
