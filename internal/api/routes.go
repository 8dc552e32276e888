package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/repokit/testrepo/internal/server"
)

// NewHandler returns the HTTP handler serving every configured record
// endpoint and the health check.
func NewHandler(srv server.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", HealthHandler(srv))

	for key, svc := range srv.Records {
		ep := svc.Endpoint()
		prefix := EndpointPrefix(ep)

		list := prefix + ep.ListRoute
		if strings.HasSuffix(list, "/") {
			list += "{$}"
		}
		mux.Handle(list, RecordsHandler(srv, key))
		mux.Handle(prefix+ep.ItemRoute, RecordHandler(srv, key))

		srv.Logger.Debug("registered record endpoint",
			"endpoint", key,
			"list_route", prefix+ep.ListRoute,
			"item_route", prefix+ep.ItemRoute,
		)
	}

	return logRequests(srv, mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(srv server.Server, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		srv.Logger.Debug("handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
