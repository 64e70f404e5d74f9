package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/QuanCamile/RemindKanban/internal/ingest"
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// eventsHandler authorizes, normalizes and applies one inbound event.
// Processing is synchronous within the request; only the operator
// notification happens in the background.
func (a *App) eventsHandler(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get("x-api-key")
	if apiKey == "" || apiKey != a.APISecret {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var raw ingest.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "invalid JSON"})
		return
	}

	ev, err := ingest.Normalize(raw, r.Header.Get("x-bearer"), r.Header.Get("x-cds-api-key"))
	if err != nil {
		if errors.Is(err, ingest.ErrMissingTaskID) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "Missing taskId"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}

	if err := a.Service.Process(r.Context(), ev); err != nil {
		var unknown *ingest.UnknownEventError
		if errors.As(err, &unknown) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"ok":       false,
				"message":  "Unknown eventType",
				"received": unknown.Received,
			})
			return
		}
		log.Println("api: process event:", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "failed to store task"})
		return
	}

	// Best-effort fan-out; a broker hiccup must not fail the event.
	if a.Stream != nil {
		if err := a.Stream.PublishEvent(r.Context(), ev.TaskID, raw); err != nil {
			log.Println("api: publish event stream:", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
