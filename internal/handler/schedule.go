package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/gymops/internal/auth"
	"github.com/dukerupert/gymops/internal/maintenance"
	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/store"
	"github.com/dukerupert/gymops/internal/websocket"
)

type ScheduleHandler struct {
	broadcaster
	svc       *maintenance.Service
	schedules *store.ScheduleStore
	logger    *slog.Logger
}

func NewScheduleHandler(svc *maintenance.Service, ss *store.ScheduleStore, hub *websocket.Hub, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{broadcaster: broadcaster{hub: hub}, svc: svc, schedules: ss, logger: logger}
}

// List handles GET /api/schedules?equipment_id=&type=&active=
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	equipmentID, err := parseInt64Query(r, "equipment_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f := store.ScheduleFilter{
		EquipmentID: equipmentID,
		ActiveOnly:  r.URL.Query().Get("active") == "true",
	}
	if v := r.URL.Query().Get("type"); v != "" {
		mt, ok := model.ParseMaintenanceType(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid type")
			return
		}
		f.MaintenanceType = mt
	}

	list, err := h.schedules.List(f)
	if err != nil {
		h.logger.Error("list schedules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.WithStatus(list))
}

// Get handles GET /api/schedules/{id}
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	sc, err := h.schedules.GetByID(id)
	if err != nil {
		h.logger.Error("get schedule", "schedule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	if sc == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.WithStatus([]model.MaintenanceSchedule{*sc})[0])
}

// Complete handles POST /api/schedules/{id}/complete. performed_by defaults
// to the authenticated operator.
func (h *ScheduleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req maintenance.CompletionDetails
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PerformedBy = strings.TrimSpace(req.PerformedBy)
	if req.PerformedBy == "" {
		req.PerformedBy = auth.OperatorName(r.Context())
	}

	res, err := h.svc.CompleteMaintenance(id, req)
	if err != nil {
		writeServiceError(w, h.logger, "complete maintenance", err)
		return
	}

	h.broadcast(websocket.ScheduleCompleted(res))
	writeJSON(w, http.StatusOK, res)
}

type skipRequest struct {
	Reason string `json:"reason"`
}

// Skip handles POST /api/schedules/{id}/skip
func (h *ScheduleHandler) Skip(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req skipRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.SkipOverdueMaintenance(id, strings.TrimSpace(req.Reason))
	if err != nil {
		writeServiceError(w, h.logger, "skip maintenance", err)
		return
	}

	h.broadcast(websocket.ScheduleSkipped(res))
	writeJSON(w, http.StatusOK, res)
}

// CleanupDuplicates handles POST /api/schedules/cleanup-duplicates
func (h *ScheduleHandler) CleanupDuplicates(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CleanupDuplicateSchedules()
	if err != nil {
		writeServiceError(w, h.logger, "clean up duplicate schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
