package api

import (
	"encoding/json"
	"net/http"

	"github.com/repokit/testrepo/internal/server"
	"github.com/repokit/testrepo/pkg/database"
)

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Search   string `json:"search"`
}

// HealthHandler reports database and search provider health.
// Endpoint: GET /healthz
func HealthHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Database: "ok", Search: "ok"}
		status := http.StatusOK

		if err := database.Ping(r.Context(), srv.DB); err != nil {
			srv.Logger.Error("database health check failed", "error", err)
			resp.Status, resp.Database = "unavailable", err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := srv.SearchProvider.Healthy(r.Context()); err != nil {
			srv.Logger.Error("search health check failed", "error", err)
			resp.Status, resp.Search = "unavailable", err.Error()
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	})
}
