package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kbase/orcidlink/pkg/logger"
)

type statusResponse struct {
	Status      string `json:"status"`
	CurrentTime int64  `json:"current_time"`
	StartTime   int64  `json:"start_time"`
}

// StatusRouter creates a router for the unauthenticated service status
// endpoint.
func StatusRouter() http.Handler {
	started := time.Now().UnixMilli()

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		resp := statusResponse{
			Status:      "ok",
			CurrentTime: time.Now().UnixMilli(),
			StartTime:   started,
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Errorf("Failed to encode status response: %v", err)
		}
	})
	return r
}
