package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/catalog"
	"github.com/omzoxima/adminpannelbackend/history"
	"github.com/omzoxima/adminpannelbackend/logger"
	"github.com/omzoxima/adminpannelbackend/pipeline"
	"github.com/omzoxima/adminpannelbackend/security"
	"github.com/omzoxima/adminpannelbackend/storage"
)

// Deps carries everything the HTTP handlers need. One value is built in main
// and shared by every route.
type Deps struct {
	Catalog  *catalog.Store
	History  *history.Store
	Objects  storage.Store
	Pipeline *pipeline.Pipeline
	Vault    *security.Vault
	Guard    *security.DeviceGuard

	SignedReadTTL   time.Duration
	SignedUploadTTL time.Duration
	PlaybackTTL     time.Duration
}

// Register wires every route onto the mux.
func Register(mux *http.ServeMux, d *Deps) {
	mux.HandleFunc("/health", HealthHandler)

	mux.HandleFunc("/api/series", d.SeriesHandler)
	mux.HandleFunc("/api/series/get", d.SeriesGetHandler)
	mux.HandleFunc("/api/episodes", d.EpisodeListHandler)
	mux.HandleFunc("/api/episodes/transcode-hls", d.TranscodeHandler)
	mux.HandleFunc("/api/episodes/hls-url", d.HLSURLHandler)
	mux.HandleFunc("/api/playback/token", d.PlaybackTokenHandler)
	mux.HandleFunc("/api/playback/resolve", d.PlaybackResolveHandler)
	mux.HandleFunc("/api/uploads/sign", d.UploadSignHandler)
	mux.HandleFunc("/api/history", d.HistoryHandler)
}

// writeJSON writes a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps an error onto its HTTP status and a small JSON body.
func writeError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	writeJSON(w, apperrors.HTTPStatus(kind), map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

// deviceID extracts the raw device identifier from the request headers.
func deviceID(r *http.Request) string {
	return r.Header.Get("X-Device-ID")
}
