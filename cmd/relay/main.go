package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/QuanCamile/RemindKanban/internal/config"
	"github.com/QuanCamile/RemindKanban/internal/ingest"
	"github.com/QuanCamile/RemindKanban/internal/notify"
	"github.com/QuanCamile/RemindKanban/internal/queue"
	"github.com/QuanCamile/RemindKanban/internal/store"
)

// The relay consumes the inbound events topic and drives the same
// ingestion service as the HTTP endpoint, for producers that post
// events via Kafka instead.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	if cfg.KafkaBrokers == "" {
		log.Fatal("relay: KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("relay: open store:", err)
	}
	defer st.Close()

	notifier, err := notify.Build(ctx, cfg)
	if err != nil {
		log.Fatal("relay: init notifier:", err)
	}

	svc := &ingest.Service{
		Store:             st,
		Notifier:          notifier,
		WarnBeforeSeconds: cfg.WarnBeforeSeconds,
	}

	consumer := queue.NewConsumer(splitCSV(cfg.KafkaBrokers), cfg.KafkaTopicEvents, cfg.KafkaGroupID)
	defer consumer.Close()

	log.Println("relay: started topic=", cfg.KafkaTopicEvents, "group=", cfg.KafkaGroupID)

	for {
		msg, commit, err := consumer.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("relay: shutting down")
				return
			}
			log.Println("relay: read error:", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		ev, err := ingest.Normalize(msg, "", "")
		if err != nil {
			// Invalid events never become valid; commit so the group
			// does not re-read them forever.
			log.Println("relay: invalid event:", err)
			_ = commit(ctx)
			continue
		}

		if err := svc.Process(ctx, ev); err != nil {
			var unknown *ingest.UnknownEventError
			if errors.As(err, &unknown) {
				log.Println("relay: rejected event:", err)
				_ = commit(ctx)
				continue
			}
			// Storage failure: do not commit, Kafka redelivers.
			log.Println("relay: process error:", err)
			continue
		}

		if err := commit(ctx); err != nil {
			log.Println("relay: commit error:", err)
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
