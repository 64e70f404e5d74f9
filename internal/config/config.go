// Package config reads service configuration from the environment.
// Mains call godotenv.Load() before FromEnv so a local .env works in
// development the same way it does for the other binaries.
package config

import (
	"os"
	"strconv"
)

// Notification channel selectors for NOTIFY_CHANNEL.
const (
	ChannelTelegram = "telegram"
	ChannelSES      = "ses"
	ChannelNone     = "none"
)

type Config struct {
	HTTPAddr      string
	DBPath        string
	APISecret     string
	AllowedOrigin string

	// Deadline arithmetic defaults (seconds).
	WarnBeforeSeconds      int64
	AutoCloseBeforeSeconds int64
	SweepIntervalSeconds   int64

	// Operator notifications.
	NotifyChannel string
	TGBotToken    string
	TGChatID      string
	SESFromEmail  string
	OperatorEmail string

	// External close API.
	APIBase         string
	CloseTaskPath   string
	CloseTaskBearer string
	CDSAPIKey       string

	// Kafka event bridge. Empty brokers disable it.
	KafkaBrokers     string
	KafkaTopicEvents string
	KafkaTopicStream string
	KafkaGroupID     string
}

func FromEnv() Config {
	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		DBPath:        getenv("DB_PATH", "remindkanban.db"),
		APISecret:     os.Getenv("API_SECRET"),
		AllowedOrigin: getenv("ALLOWED_ORIGIN", "https://cds.hcmict.io"),

		WarnBeforeSeconds:      getenvInt("WARN_BEFORE_SECONDS", 300),
		AutoCloseBeforeSeconds: getenvInt("AUTO_CLOSE_BEFORE_SECONDS", 300),
		SweepIntervalSeconds:   getenvInt("SWEEP_INTERVAL_SECONDS", 60),

		NotifyChannel: getenv("NOTIFY_CHANNEL", ChannelTelegram),
		TGBotToken:    os.Getenv("TG_BOT_TOKEN"),
		TGChatID:      os.Getenv("TG_CHAT_ID"),
		SESFromEmail:  os.Getenv("SES_FROM_EMAIL"),
		OperatorEmail: os.Getenv("OPERATOR_EMAIL"),

		APIBase:         getenv("API_BASE", "https://api_cds.hcmict.io"),
		CloseTaskPath:   getenv("CLOSE_TASK_PATH", "/api/work/Task/DoingTask"),
		CloseTaskBearer: os.Getenv("CLOSE_TASK_BEARER"),
		CDSAPIKey:       os.Getenv("CDS_API_KEY"),

		KafkaBrokers:     os.Getenv("KAFKA_BROKERS"),
		KafkaTopicEvents: getenv("KAFKA_TOPIC_EVENTS", "remindkanban-events"),
		KafkaTopicStream: getenv("KAFKA_TOPIC_STREAM", "remindkanban-stream"),
		KafkaGroupID:     getenv("KAFKA_GROUP_ID", "remindkanban-relay"),
	}
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
