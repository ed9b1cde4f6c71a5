package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/service"
)

type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	logger    *zap.Logger
}

func NewAnalyticsHandler(analytics *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, logger: logger}
}

func (h *AnalyticsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/consultants/{consultantId}/analytics", h.ConsultantAnalytics).Methods(http.MethodGet)
	router.HandleFunc("/analytics/aggregate", h.Recompute).Methods(http.MethodPost)
}

func (h *AnalyticsHandler) ConsultantAnalytics(w http.ResponseWriter, r *http.Request) {
	consultantID, err := pathUUID(r, "consultantId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	from, err := optionalDate(r, "date_from")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	to, err := optionalDate(r, "date_to")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rows, err := h.analytics.ListForConsultant(r.Context(), actorFrom(r), consultantID, from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, rows, int64(len(rows)))
}

// Recompute triggers the rollup on demand for a date range, e.g. after a
// backfill. The nightly task covers the steady state.
func (h *AnalyticsHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	from, err := requiredDate(r, "date_from")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	to, err := requiredDate(r, "date_to")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	actor := actorFrom(r)
	if err := h.analytics.AggregateRange(r.Context(), actor.OrganizationID, from, to); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "analytics recomputed"})
}
