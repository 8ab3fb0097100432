package www

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/icodeforyou/rdn-scraper/ingest"
)

// NewRunHandler starts a scrape and answers with its summary. A scrape
// already in progress gives 409.
func NewRunHandler(logger *slog.Logger, trigger TriggerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := trigger()
		switch {
		case errors.Is(err, ingest.ErrRunInProgress):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			logger.Warn("manual scrape failed", slog.String("category", sum.ErrorCategory))
			writeJSON(w, http.StatusBadGateway, sum)
		default:
			writeJSON(w, http.StatusOK, sum)
		}
	}
}
