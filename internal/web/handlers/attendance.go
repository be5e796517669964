package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kozaktomas/attendance-cam/internal/attendance"
	"github.com/kozaktomas/attendance-cam/internal/pipeline"
	"github.com/kozaktomas/attendance-cam/internal/status"
)

// AttendanceService is the part of the pipeline the attendance endpoints use.
type AttendanceService interface {
	Status() status.Snapshot
	Confirm(ctx context.Context, confirmed bool) pipeline.ConfirmResult
	Today() ([]attendance.Event, []string)
}

// AttendanceHandler handles status, exit confirmation and the daily log.
type AttendanceHandler struct {
	service AttendanceService
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(service AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Status returns the last event and the pending exit confirmation.
func (h *AttendanceHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Status())
}

// ExitConfirmRequest is the body of an exit confirmation.
type ExitConfirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

// ExitConfirm resolves the pending exit. Both outcomes are answered with 200;
// the body tells them apart.
func (h *AttendanceHandler) ExitConfirm(w http.ResponseWriter, r *http.Request) {
	var req ExitConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	respondJSON(w, http.StatusOK, h.service.Confirm(r.Context(), req.Confirmed))
}

// TodayResponse lists today's log rows and who is inside.
type TodayResponse struct {
	Events []attendance.Event `json:"events"`
	Inside []string           `json:"inside"`
}

// Today returns today's attendance.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	events, inside := h.service.Today()
	if events == nil {
		events = []attendance.Event{}
	}
	if inside == nil {
		inside = []string{}
	}
	respondJSON(w, http.StatusOK, TodayResponse{Events: events, Inside: inside})
}
