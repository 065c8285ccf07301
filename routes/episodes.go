package routes

import (
	"encoding/json"
	"net/http"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/logger"
	"github.com/omzoxima/adminpannelbackend/models"
	"github.com/omzoxima/adminpannelbackend/security"
)

// TranscodeHandler runs the full episode ingestion: transcode every source
// video to HLS, rewrite the playlists with signed segment URLs and commit
// the episode. The request blocks until the pipeline finishes or fails.
func (d *Deps) TranscodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.IngestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "invalid request body"))
		return
	}

	logger.Infof("Ingestion request: series=%s episode=%d videos=%d",
		req.SeriesID, req.EpisodeNumber, len(req.Videos))

	episode, err := d.Pipeline.Ingest(r.Context(), req)
	if err != nil {
		logger.Warnf("Ingestion failed for series %s episode %d: %v",
			req.SeriesID, req.EpisodeNumber, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, episode)
}

// EpisodeListHandler lists the episodes of a series.
func (d *Deps) EpisodeListHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	seriesID := r.URL.Query().Get("seriesId")
	if seriesID == "" {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "missing seriesId parameter"))
		return
	}

	episodes, err := d.Catalog.ListEpisodesBySeries(seriesID)
	if err != nil {
		writeError(w, err)
		return
	}
	if episodes == nil {
		episodes = []models.Episode{}
	}
	writeJSON(w, http.StatusOK, episodes)
}

// HLSURLHandler returns a fresh signed playlist URL for one language track
// of an episode. The stored playback URL from ingestion time has long since
// expired; this re-signs on demand.
func (d *Deps) HLSURLHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !security.ValidDeviceID(deviceID(r)) {
		writeError(w, apperrors.New(apperrors.KindInvalidDeviceID, "missing or malformed X-Device-ID header"))
		return
	}
	id := r.URL.Query().Get("id")
	lang := r.URL.Query().Get("lang")
	if id == "" || lang == "" {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "missing id or lang parameter"))
		return
	}

	episode, err := d.Catalog.GetEpisode(id)
	if err != nil {
		writeError(w, err)
		return
	}
	track := findTrack(episode, lang)
	if track == nil {
		writeError(w, apperrors.Newf(apperrors.KindNotFound, "episode %s has no %s track", id, lang))
		return
	}

	url, err := d.Objects.SignedReadURL(r.Context(), track.PlaylistPath, d.SignedReadTTL)
	if err != nil {
		logger.Errorf("Failed to sign playlist %s: %v", track.PlaylistPath, err)
		writeError(w, apperrors.Wrap(apperrors.KindStorageFailure, "failed to sign playlist URL", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"episodeId": episode.ID,
		"language":  track.Language,
		"hlsUrl":    url,
		"expiresIn": int(d.SignedReadTTL.Seconds()),
	})
}

func findTrack(episode *models.Episode, lang string) *models.LanguageTrack {
	for i := range episode.Tracks {
		if episode.Tracks[i].Language == lang {
			return &episode.Tracks[i]
		}
	}
	return nil
}
