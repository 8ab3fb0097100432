package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/rdn-scraper/slice"
	"github.com/icodeforyou/rdn-scraper/types"
)

type priceResponse struct {
	Hour  string    `json:"hour"`
	Price any       `json:"price"`
	Time  time.Time `json:"time"`
}

// NewPricesHandler lists stored prices from ?hours=N back (default 24) and
// everything ahead, which includes the next delivery day.
func NewPricesHandler(logger *slog.Logger, store Store, measurement string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		back := intOrDefault(r.URL, "hours", 24)
		if back < 0 || back > 24*366 {
			writeError(w, http.StatusBadRequest, "hours must be between 0 and 8784")
			return
		}

		from := time.Now().Add(-time.Duration(back) * time.Hour)
		points, err := store.GetPoints(r.Context(), measurement, from)
		if err != nil {
			logger.Error("handling prices request", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, slice.Map(points, func(p types.Point) priceResponse {
			return priceResponse{
				Hour:  p.Tags["hour"],
				Price: p.Fields["price"],
				Time:  p.Time,
			}
		}))
	}
}
