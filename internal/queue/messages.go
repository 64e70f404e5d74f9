package queue

import "github.com/QuanCamile/RemindKanban/internal/ingest"

// EventMessage is the Kafka payload on both the inbound events topic
// and the outbound stream topic: the same JSON body the HTTP endpoint
// accepts, so producers can switch transports without re-encoding.
type EventMessage = ingest.RawEvent
