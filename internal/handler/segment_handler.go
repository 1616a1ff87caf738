package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/models"
	"Mansoor88-6/segment-tracker/internal/service"
)

type SegmentHandler struct {
	service *service.SegmentService
	logger  *zap.Logger
}

func NewSegmentHandler(service *service.SegmentService, logger *zap.Logger) *SegmentHandler {
	return &SegmentHandler{
		service: service,
		logger:  logger,
	}
}

func (h *SegmentHandler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var req models.SegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Failed to decode request", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	seg, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "Failed to create segment", err)
		return
	}

	writeData(w, http.StatusCreated, seg)
}

// ValidateSegment runs the same checks as create and update without
// storing anything. Invalid input still answers 200 with valid=false.
func (h *SegmentHandler) ValidateSegment(w http.ResponseWriter, r *http.Request) {
	var req models.SegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Failed to decode request", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Validate(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "Failed to validate segment", err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"valid":  result.Valid,
		"errors": fieldErrors(result.Errors),
	})
}

func (h *SegmentHandler) GetSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, "Failed to get segment", err)
		return
	}

	writeData(w, http.StatusOK, seg)
}

func (h *SegmentHandler) ListSegments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SegmentFilter{
		MachineName: q.Get("machine"),
		Date:        q.Get("date"),
		StartDate:   q.Get("startDate"),
		EndDate:     q.Get("endDate"),
	}

	limit := 50
	offset := 0
	if limitStr := q.Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = l
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		o, err := strconv.Atoi(offsetStr)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		offset = o
	}

	result, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, h.logger, "Failed to list segments", err)
		return
	}

	writeData(w, http.StatusOK, result)
}

func (h *SegmentHandler) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	var req models.SegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Failed to decode request", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	seg, err := h.service.Update(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, h.logger, "Failed to update segment", err)
		return
	}

	writeData(w, http.StatusOK, seg)
}

func (h *SegmentHandler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.logger, "Failed to delete segment", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
