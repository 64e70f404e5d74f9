package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/QuanCamile/RemindKanban/internal/closer"
	"github.com/QuanCamile/RemindKanban/internal/config"
	"github.com/QuanCamile/RemindKanban/internal/notify"
	"github.com/QuanCamile/RemindKanban/internal/store"
	"github.com/QuanCamile/RemindKanban/internal/sweep"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("sweep: open store:", err)
	}
	defer st.Close()

	notifier, err := notify.Build(ctx, cfg)
	if err != nil {
		log.Fatal("sweep: init notifier:", err)
	}

	sw := &sweep.Sweeper{
		Store:           st,
		Closer:          closer.New(cfg.APIBase, cfg.CloseTaskPath, cfg.AllowedOrigin),
		Notifier:        notifier,
		FallbackBearer:  cfg.CloseTaskBearer,
		FallbackAPIKey:  cfg.CDSAPIKey,
		AutoCloseBefore: time.Duration(cfg.AutoCloseBeforeSeconds) * time.Second,
	}

	interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	log.Println("sweep: started interval=", interval)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		_ = sw.Run(ctx)

		select {
		case <-ctx.Done():
			log.Println("sweep: shutting down")
			return
		case <-t.C:
		}
	}
}
