package routes

import (
	"net/http"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/history"
)

// HistoryHandler lists finished ingestions, oldest first. Rolled-back
// entries carry the failure text that caused the rollback.
func (d *Deps) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := d.History.List()
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.KindInternal, "failed to read history", err))
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
