package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"store": "ok"}
	switch {
	case s.ready == nil:
		checks["store"] = "not_configured"
	default:
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			checks["store"] = "unavailable"
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rl := s.limiter.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "gastos_uptime_seconds %d\n", int64(time.Since(s.started).Seconds()))
	fmt.Fprintf(w, "gastos_http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(w, "gastos_http_server_errors_total %d\n", tm.ServerErrors)
	fmt.Fprintf(w, "gastos_http_last_duration_microseconds %d\n", tm.LastDurationUs)
	fmt.Fprintf(w, "gastos_rate_limit_hits_total %d\n", rl.TotalHits)
	fmt.Fprintf(w, "gastos_rate_limit_clients %d\n", rl.ClientCount)
	fmt.Fprintf(w, "gastos_suspicious_requests_total %d\n", s.detector.SuspiciousRequests())
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
