package www

import (
	"log/slog"
	"net/http"

	"github.com/icodeforyou/rdn-scraper/database"
	"github.com/icodeforyou/rdn-scraper/logging"
)

func NewLogHandler(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := max(intOrDefault(r.URL, "page", 1), 1)
		pageSize := min(max(intOrDefault(r.URL, "pageSize", 25), 1), 500)

		level := slog.LevelDebug
		if l := r.URL.Query().Get("level"); l != "" {
			level = logging.LevelFromString(&l)
		}

		e, err := store.GetLogEntries(r.Context(), level, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if e == nil {
			e = []database.LogEntryRow{}
		}

		writeJSON(w, http.StatusOK, struct {
			Page     int                    `json:"page"`
			PageSize int                    `json:"pageSize"`
			Entries  []database.LogEntryRow `json:"entries"`
		}{
			Page:     page,
			PageSize: pageSize,
			Entries:  e,
		})
	}
}
