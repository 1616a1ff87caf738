package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/analytics"
	"Mansoor88-6/segment-tracker/internal/models"
	"Mansoor88-6/segment-tracker/internal/service"
	"Mansoor88-6/segment-tracker/internal/timeline"
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
	logger  *zap.Logger
}

func NewAnalyticsHandler(service *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger,
	}
}

func (h *AnalyticsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.service.Statistics(r.Context(), analytics.Filter{
		MachineName: q.Get("machine"),
		StartDate:   q.Get("startDate"),
		EndDate:     q.Get("endDate"),
	})
	if err != nil {
		writeError(w, h.logger, "Failed to compute statistics", err)
		return
	}

	writeData(w, http.StatusOK, report)
}

func (h *AnalyticsHandler) MachineSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.MachineSummary(r.Context(), mux.Vars(r)["machine"])
	if err != nil {
		writeError(w, h.logger, "Failed to summarize machine", err)
		return
	}

	writeData(w, http.StatusOK, summary)
}

func (h *AnalyticsHandler) Overlaps(w http.ResponseWriter, r *http.Request) {
	machine := models.NormalizeMachineName(r.URL.Query().Get("machine"))

	pairs, err := h.service.Overlaps(r.Context(), machine)
	if err != nil {
		writeError(w, h.logger, "Failed to scan overlaps", err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"machineName": machine,
		"count":       len(pairs),
		"overlaps":    pairs,
	})
}

func (h *AnalyticsHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode, err := timeline.ParseAxisMode(q.Get("axis"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	tl, err := h.service.Timeline(r.Context(), q.Get("date"), mode)
	if err != nil {
		writeError(w, h.logger, "Failed to build timeline", err)
		return
	}

	writeData(w, http.StatusOK, tl)
}
