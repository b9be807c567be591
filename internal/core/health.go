package core

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable. The pgx pool satisfies
// this directly.
type Pinger interface {
	Ping(ctx context.Context) error
}

// healthResponse is the /health response body.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthHandler returns a liveness handler that also pings the database.
// A failing dependency reports 503 with per-dependency detail.
func (s *Server) HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Database: "ok"}
		status := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				resp.Status = "degraded"
				resp.Database = "unreachable"
				status = http.StatusServiceUnavailable
			}
		}

		JSON(w, r, status, resp)
	}
}
