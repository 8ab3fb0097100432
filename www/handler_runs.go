package www

import (
	"log/slog"
	"net/http"

	"github.com/icodeforyou/rdn-scraper/database"
)

func NewRunsHandler(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := min(max(intOrDefault(r.URL, "limit", 20), 1), 500)

		runs, err := store.GetRuns(r.Context(), limit)
		if err != nil {
			logger.Error("handling runs request", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if runs == nil {
			runs = []database.RunRow{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}
