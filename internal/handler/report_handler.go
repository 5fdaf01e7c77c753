package handler

import (
	"net/http"

	"github.com/boddenberg/account-aggregator-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Reports
// GET /v1/report
// ============================================================

func reportHandler(reporter *service.Reporter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/report")
		defer span.End()

		if reporter == nil {
			writeError(w, http.StatusServiceUnavailable, "aggregator not configured")
			return
		}

		// ?fresh=true skips the report cache.
		run := reporter.Latest
		if r.URL.Query().Get("fresh") == "true" {
			run = reporter.Run
		}

		report, err := run(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
