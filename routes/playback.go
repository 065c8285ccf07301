package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/logger"
	"github.com/omzoxima/adminpannelbackend/security"
)

type playbackTokenRequest struct {
	EpisodeID string `json:"episodeId"`
	Language  string `json:"language"`
}

// PlaybackTokenHandler issues a short-lived, device-bound token for one
// episode track. The caller presents the token to the resolve endpoint to
// obtain the actual signed URL.
func (d *Deps) PlaybackTokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	device := deviceID(r)
	if !security.ValidDeviceID(device) {
		writeError(w, apperrors.New(apperrors.KindInvalidDeviceID, "missing or malformed X-Device-ID header"))
		return
	}

	var req playbackTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "invalid request body"))
		return
	}
	if req.EpisodeID == "" || req.Language == "" {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "episodeId and language are required"))
		return
	}

	episode, err := d.Catalog.GetEpisode(req.EpisodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	track := findTrack(episode, req.Language)
	if track == nil {
		writeError(w, apperrors.Newf(apperrors.KindNotFound, "episode %s has no %s track", req.EpisodeID, req.Language))
		return
	}

	token, err := d.Vault.Issue(track.PlaylistPath, device, episode.ID, d.PlaybackTTL)
	if err != nil {
		if errors.Is(err, security.ErrInvalidDeviceID) {
			writeError(w, apperrors.New(apperrors.KindInvalidDeviceID, "missing or malformed X-Device-ID header"))
			return
		}
		logger.Errorf("Failed to issue playback token: %v", err)
		writeError(w, apperrors.Wrap(apperrors.KindInternal, "failed to issue token", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresIn": int(d.PlaybackTTL.Seconds()),
	})
}

// PlaybackResolveHandler verifies a playback token against the presenting
// device and redirects to a freshly signed URL for the object it grants.
// Every verification failure looks the same to the caller.
func (d *Deps) PlaybackResolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "missing token parameter"))
		return
	}

	path, err := d.Vault.Verify(token, deviceID(r))
	if err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidToken, "invalid token"))
		return
	}

	url, err := d.Objects.SignedReadURL(r.Context(), path, d.SignedReadTTL)
	if err != nil {
		logger.Errorf("Failed to sign object %s: %v", path, err)
		writeError(w, apperrors.Wrap(apperrors.KindStorageFailure, "failed to sign object URL", err))
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}
