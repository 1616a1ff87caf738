package router

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/handler"
	"Mansoor88-6/segment-tracker/internal/metrics"
)

func New(
	segmentHandler *handler.SegmentHandler,
	analyticsHandler *handler.AnalyticsHandler,
	m *metrics.Metrics,
	corsOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Fixed paths are registered before {id} so they are not captured by it.
	api.HandleFunc("/segments/validate", segmentHandler.ValidateSegment).Methods(http.MethodPost)
	api.HandleFunc("/segments/overlaps", analyticsHandler.Overlaps).Methods(http.MethodGet)
	api.HandleFunc("/segments", segmentHandler.ListSegments).Methods(http.MethodGet)
	api.HandleFunc("/segments", segmentHandler.CreateSegment).Methods(http.MethodPost)
	api.HandleFunc("/segments/{id}", segmentHandler.GetSegment).Methods(http.MethodGet)
	api.HandleFunc("/segments/{id}", segmentHandler.UpdateSegment).Methods(http.MethodPut)
	api.HandleFunc("/segments/{id}", segmentHandler.DeleteSegment).Methods(http.MethodDelete)

	api.HandleFunc("/analytics/statistics", analyticsHandler.Statistics).Methods(http.MethodGet)
	api.HandleFunc("/analytics/machines/{machine}", analyticsHandler.MachineSummary).Methods(http.MethodGet)
	api.HandleFunc("/timeline", analyticsHandler.Timeline).Methods(http.MethodGet)

	r.Use(requestLogger(logger, m))

	cors := handlers.CORS(
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger)),
		handlers.PrintRecoveryStack(true),
	)

	return recovery(cors(r))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// requestLogger logs every matched request and records it under its route
// template, so /api/segments/{id} is one series regardless of id.
func requestLogger(logger *zap.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			duration := time.Since(start)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Duration("duration", duration),
				zap.String("remote_addr", r.RemoteAddr),
			)
			m.ObserveRequest(r.Method, route, rec.status, duration)
		})
	}
}
