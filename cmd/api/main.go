package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/QuanCamile/RemindKanban/internal/config"
	httpapi "github.com/QuanCamile/RemindKanban/internal/http"
	"github.com/QuanCamile/RemindKanban/internal/ingest"
	"github.com/QuanCamile/RemindKanban/internal/notify"
	"github.com/QuanCamile/RemindKanban/internal/queue"
	"github.com/QuanCamile/RemindKanban/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	if cfg.APISecret == "" {
		log.Fatal("api: API_SECRET is required")
	}

	ctx := context.Background()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("api: open store:", err)
	}
	defer st.Close()

	notifier, err := notify.Build(ctx, cfg)
	if err != nil {
		log.Fatal("api: init notifier:", err)
	}

	svc := &ingest.Service{
		Store:             st,
		Notifier:          notifier,
		WarnBeforeSeconds: cfg.WarnBeforeSeconds,
	}

	var stream *queue.Producer
	if cfg.KafkaBrokers != "" {
		stream = queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicStream)
		defer stream.Close()
	}

	app := &httpapi.App{
		Service:   svc,
		Stream:    stream,
		APISecret: cfg.APISecret,
	}
	r := httpapi.NewRouter(app, cfg.AllowedOrigin)

	log.Println("api: listening on", cfg.HTTPAddr)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
