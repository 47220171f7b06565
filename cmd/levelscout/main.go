package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"levelscout/internal/bus"
	"levelscout/internal/config"
	"levelscout/internal/ingest"
	"levelscout/internal/model"
	"levelscout/internal/notifier"
	"levelscout/internal/repository"
	"levelscout/internal/runner"
	"levelscout/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] levelscout starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init repository
	var repo repository.Repository
	if cfg.Database.PostgresDSN != "" {
		repo, err = repository.NewPostgresRepository(cfg.Database.PostgresDSN)
	} else {
		repo, err = repository.NewSQLiteRepository(cfg.Database.SQLitePath)
	}
	if err != nil {
		log.Fatalf("[FATAL] init repository: %v", err)
	}
	defer repo.Close()

	// Init event bus
	eventBus, err := bus.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("[FATAL] init event bus: %v", err)
	}
	defer eventBus.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init push hub and HTTP surface
	hub := notifier.NewHub()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	go func() {
		log.Printf("[INFO] listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	// Init runner and consume triggers
	run := runner.New(repo, eventBus, hub, cfg.Runner.Lookback)
	go run.Consume(ctx, eventBus.SubscribeTriggers(ctx))

	// Init candle ingest
	ing := ingest.New(repo, cfg.Runner.IngestWorkers)
	go ing.Consume(ctx, eventBus.SubscribeCandles(ctx))

	// Init scheduler
	pairs := make([]model.RunTrigger, 0, len(cfg.Schedule.Pairs))
	for _, p := range cfg.Schedule.Pairs {
		pairs = append(pairs, model.RunTrigger{Market: p.Market, Granularity: p.Granularity})
	}
	sched := scheduler.NewScheduler(ctx, eventBus, pairs)
	if err := sched.Register(cfg.Schedule.TriggerCron); err != nil {
		log.Fatalf("[FATAL] register cron task: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Optional: trigger all pairs on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, publishing triggers now")
		go sched.TriggerNow()
	}

	log.Println("[INFO] levelscout is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] http shutdown: %v", err)
	}
	log.Println("[INFO] levelscout stopped")
}
