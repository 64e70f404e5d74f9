package httpapi

import (
	"github.com/QuanCamile/RemindKanban/internal/ingest"
	"github.com/QuanCamile/RemindKanban/internal/queue"
)

type App struct {
	Service *ingest.Service

	// Stream fans accepted events out to Kafka for downstream
	// consumers. Nil when the bridge is not configured.
	Stream *queue.Producer

	// APISecret is the shared secret the extension must present in
	// x-api-key.
	APISecret string
}
