package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/gymops/internal/maintenance"
	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/store"
	"github.com/dukerupert/gymops/internal/websocket"
)

type EquipmentHandler struct {
	broadcaster
	svc       *maintenance.Service
	equipment *store.EquipmentStore
	schedules *store.ScheduleStore
	history   *store.HistoryStore
	logger    *slog.Logger
}

func NewEquipmentHandler(svc *maintenance.Service, es *store.EquipmentStore, ss *store.ScheduleStore, hs *store.HistoryStore, hub *websocket.Hub, logger *slog.Logger) *EquipmentHandler {
	return &EquipmentHandler{
		broadcaster: broadcaster{hub: hub},
		svc:         svc,
		equipment:   es,
		schedules:   ss,
		history:     hs,
		logger:      logger,
	}
}

// equipmentRequest uses pointers so PUT can change a subset of fields.
type equipmentRequest struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
	Location *string `json:"location"`
	Priority *string `json:"priority"`
	Status   *string `json:"status"`
	Notes    *string `json:"notes"`
}

func (req equipmentRequest) apply(in *store.EquipmentInput) {
	if req.Name != nil {
		in.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		in.Category = strings.TrimSpace(*req.Category)
	}
	if req.Location != nil {
		in.Location = strings.TrimSpace(*req.Location)
	}
	if req.Priority != nil {
		in.Priority = model.Priority(*req.Priority)
	}
	if req.Status != nil {
		in.Status = model.EquipmentStatus(*req.Status)
	}
	if req.Notes != nil {
		in.Notes = *req.Notes
	}
}

// List handles GET /api/equipment?status=
func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	var status model.EquipmentStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st, ok := model.ParseEquipmentStatus(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		status = st
	}

	list, err := h.equipment.List(status)
	if err != nil {
		h.logger.Error("list equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list equipment")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

// Create handles POST /api/equipment. Active equipment gets its three
// schedules in the same transaction.
func (h *EquipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req equipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var in store.EquipmentInput
	req.apply(&in)

	eq, schedules, err := h.svc.CreateEquipment(in)
	if err != nil {
		writeServiceError(w, h.logger, "create equipment", err)
		return
	}

	h.broadcast(websocket.NewMessage("equipment", "created", eq.ID, nil))
	if len(schedules) > 0 {
		h.broadcast(websocket.SchedulesGenerated(eq.ID, len(schedules)))
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"equipment": eq,
		"schedules": emptyIfNil(schedules),
	})
}

// Get handles GET /api/equipment/{id}
func (h *EquipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	eq, ok := h.load(w, r)
	if !ok {
		return
	}
	active, err := h.schedules.ListActiveByEquipment(eq.ID)
	if err != nil {
		h.logger.Error("list active schedules", "equipment_id", eq.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get equipment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"equipment": eq,
		"schedules": h.svc.WithStatus(active),
	})
}

// Update handles PUT /api/equipment/{id}
func (h *EquipmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	var req equipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := store.EquipmentInput{
		Name:     existing.Name,
		Category: existing.Category,
		Location: existing.Location,
		Priority: existing.Priority,
		Status:   existing.Status,
		Notes:    existing.Notes,
	}
	req.apply(&in)

	res, err := h.svc.UpdateEquipment(existing.ID, in)
	if err != nil {
		writeServiceError(w, h.logger, "update equipment", err)
		return
	}

	h.broadcast(websocket.NewMessage("equipment", "updated", existing.ID, nil))
	if len(res.Generated) > 0 {
		h.broadcast(websocket.SchedulesGenerated(existing.ID, len(res.Generated)))
	}
	writeJSON(w, http.StatusOK, res)
}

// Schedules handles GET /api/equipment/{id}/schedules?active=
func (h *EquipmentHandler) Schedules(w http.ResponseWriter, r *http.Request) {
	eq, ok := h.load(w, r)
	if !ok {
		return
	}
	list, err := h.schedules.List(store.ScheduleFilter{
		EquipmentID: eq.ID,
		ActiveOnly:  r.URL.Query().Get("active") == "true",
	})
	if err != nil {
		h.logger.Error("list schedules", "equipment_id", eq.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.WithStatus(list))
}

type generateRequest struct {
	Priority string `json:"priority"`
}

// Generate handles POST /api/equipment/{id}/schedules/generate. With a
// priority in the body the current generation is superseded; without one
// a first generation is created at the equipment's priority.
func (h *EquipmentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	eq, ok := h.load(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		created []model.MaintenanceSchedule
		err     error
	)
	if req.Priority != "" {
		p, ok := model.ParsePriority(req.Priority)
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "invalid priority")
			return
		}
		created, err = h.svc.RegenerateSchedules(eq.ID, p)
	} else {
		created, err = h.svc.GenerateSchedules(eq.ID, eq.Priority)
	}
	if err != nil {
		writeServiceError(w, h.logger, "generate schedules", err)
		return
	}

	h.broadcast(websocket.SchedulesGenerated(eq.ID, len(created)))
	writeJSON(w, http.StatusCreated, created)
}

// History handles GET /api/equipment/{id}/history?from=&to=
func (h *EquipmentHandler) History(w http.ResponseWriter, r *http.Request) {
	eq, ok := h.load(w, r)
	if !ok {
		return
	}
	from, err := parseDateQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.history.List(store.HistoryFilter{EquipmentID: eq.ID, From: from, To: to})
	if err != nil {
		h.logger.Error("list history", "equipment_id", eq.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

func (h *EquipmentHandler) load(w http.ResponseWriter, r *http.Request) (*model.Equipment, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	eq, err := h.equipment.GetByID(id)
	if err != nil {
		h.logger.Error("get equipment", "equipment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get equipment")
		return nil, false
	}
	if eq == nil {
		writeError(w, http.StatusNotFound, "equipment not found")
		return nil, false
	}
	return eq, true
}
