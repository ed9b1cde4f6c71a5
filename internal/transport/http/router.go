package http

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/service"
)

// NewRouter assembles the /scheduling API. Identity headers are required on
// every route under the prefix; /healthz stays open for probes.
func NewRouter(
	availability *service.AvailabilityService,
	resolver *service.SlotResolver,
	engine *service.BookingEngine,
	analytics *service.AnalyticsService,
	pool *pgxpool.Pool,
	logger *zap.Logger,
) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	scheduling := router.PathPrefix("/scheduling").Subrouter()
	scheduling.Use(ActorMiddleware)

	NewAvailabilityHandler(availability, resolver, logger).RegisterRoutes(scheduling)
	NewBookingHandler(engine, logger).RegisterRoutes(scheduling)
	NewAnalyticsHandler(analytics, logger).RegisterRoutes(scheduling)

	return handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(os.Stdout, router))
}
