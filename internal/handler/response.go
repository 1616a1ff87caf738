package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/repository"
	"Mansoor88-6/segment-tracker/internal/service"
	"Mansoor88-6/segment-tracker/internal/timecalc"
	"Mansoor88-6/segment-tracker/internal/timeline"
	"Mansoor88-6/segment-tracker/internal/validation"
)

type envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError is one entry of a rejected form.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func fieldErrors(errs validation.Errors) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for _, field := range errs.Fields() {
		out = append(out, FieldError{Field: field, Message: errs[field]})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// writeError maps service and domain errors to a status code. Anything it
// does not recognize is logged and reported as a 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: fieldErrors(verr.Errors)})
	case errors.Is(err, repository.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Segment not found")
	case errors.Is(err, timecalc.ErrInvalidFormat),
		errors.Is(err, timecalc.ErrInvalidInput),
		errors.Is(err, timeline.ErrInvalidAxis):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error(msg, zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, msg)
	}
}
