package routes

import (
	"encoding/json"
	"net/http"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/logger"
	"github.com/omzoxima/adminpannelbackend/models"

	"github.com/google/uuid"
)

// SeriesHandler lists series on GET and creates one on POST.
func (d *Deps) SeriesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		d.listSeries(w, r)
	case http.MethodPost:
		d.createSeries(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (d *Deps) listSeries(w http.ResponseWriter, r *http.Request) {
	series, err := d.Catalog.ListSeries()
	if err != nil {
		logger.Errorf("Failed to list series: %v", err)
		writeError(w, err)
		return
	}
	if series == nil {
		series = []models.Series{}
	}
	writeJSON(w, http.StatusOK, series)
}

func (d *Deps) createSeries(w http.ResponseWriter, r *http.Request) {
	var series models.Series
	if err := json.NewDecoder(r.Body).Decode(&series); err != nil {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "invalid request body"))
		return
	}
	if series.Title == "" {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "title is required"))
		return
	}
	if series.Status == "" {
		series.Status = "Draft"
	}
	if !validSeriesStatus(series.Status) {
		writeError(w, apperrors.Newf(apperrors.KindBadRequest, "invalid status %q", series.Status))
		return
	}

	series.ID = uuid.NewString()
	if err := d.Catalog.CreateSeries(&series); err != nil {
		logger.Errorf("Failed to create series: %v", err)
		writeError(w, err)
		return
	}
	logger.Infof("Created series %s (%s)", series.ID, series.Title)
	writeJSON(w, http.StatusCreated, series)
}

// SeriesGetHandler returns one series and its episodes.
func (d *Deps) SeriesGetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, apperrors.New(apperrors.KindBadRequest, "missing id parameter"))
		return
	}

	series, err := d.Catalog.GetSeries(id)
	if err != nil {
		writeError(w, err)
		return
	}
	episodes, err := d.Catalog.ListEpisodesBySeries(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if episodes == nil {
		episodes = []models.Episode{}
	}

	thumbnailURL := ""
	if series.ThumbnailPath != "" {
		thumbnailURL, err = d.Objects.SignedReadURL(r.Context(), series.ThumbnailPath, d.SignedReadTTL)
		if err != nil {
			logger.Warnf("Failed to sign thumbnail %s: %v", series.ThumbnailPath, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"series":       series,
		"episodes":     episodes,
		"thumbnailUrl": thumbnailURL,
	})
}

func validSeriesStatus(status string) bool {
	for _, s := range models.SeriesStatuses {
		if s == status {
			return true
		}
	}
	return false
}
