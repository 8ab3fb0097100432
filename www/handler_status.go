package www

import (
	"net/http"

	"github.com/icodeforyou/rdn-scraper/ingest"
)

type statusResponse struct {
	State       ingest.State    `json:"state"`
	LastSummary *ingest.Summary `json:"lastSummary"`
	Message     string          `json:"message,omitempty"`
}

func NewStatusHandler(status Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{State: status.State()}
		if sum, ok := status.LastSummary(); ok {
			resp.LastSummary = &sum
			resp.Message = sum.Message()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
