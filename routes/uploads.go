package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/logger"
)

// allowed extensions for direct-to-bucket uploads
var uploadExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
	".jpg": true,
	".png": true,
	".m3u8": false, // playlists are produced, never uploaded
}

type uploadSignRequest struct {
	Extension string `json:"extension"`
}

// UploadSignHandler grants a time-limited upload URL for a fresh object in
// the uploads folder, so clients push source files straight to the bucket
// instead of through this server.
func (d *Deps) UploadSignHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req uploadSignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "invalid request body"))
		return
	}
	ext := strings.ToLower(req.Extension)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !uploadExtensions[ext] {
		writeError(w, apperrors.Newf(apperrors.KindBadRequest, "extension %q is not accepted", req.Extension))
		return
	}

	grant, err := d.Objects.SignedUploadURL(r.Context(), "uploads", ext, d.SignedUploadTTL)
	if err != nil {
		logger.Errorf("Failed to sign upload URL: %v", err)
		writeError(w, apperrors.Wrap(apperrors.KindStorageFailure, "failed to sign upload URL", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uploadUrl": grant.URL,
		"path":      grant.Path,
		"sourceUri": d.Objects.URI(grant.Path),
		"expiresIn": int(d.SignedUploadTTL.Seconds()),
	})
}
