package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/maintenance"
	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/store"
	"github.com/dukerupert/gymops/internal/websocket"
)

type TaskHandler struct {
	broadcaster
	svc    *maintenance.Service
	tasks  *store.TaskStore
	logger *slog.Logger
}

func NewTaskHandler(svc *maintenance.Service, ts *store.TaskStore, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{broadcaster: broadcaster{hub: hub}, svc: svc, tasks: ts, logger: logger}
}

type taskRequest struct {
	EquipmentID   int64  `json:"equipment_id"`
	Kind          string `json:"kind"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	ScheduledDate string `json:"scheduled_date"`
	Technician    string `json:"technician"`
	Notes         string `json:"notes"`
}

// List handles GET /api/tasks?equipment_id=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	equipmentID, err := parseInt64Query(r, "equipment_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.tasks.List(equipmentID)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

// Create handles POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := store.TaskInput{
		EquipmentID: req.EquipmentID,
		Kind:        model.TaskKind(req.Kind),
		Title:       req.Title,
		Description: req.Description,
		Technician:  req.Technician,
		Notes:       req.Notes,
	}
	if req.ScheduledDate != "" {
		d, err := clock.Parse(req.ScheduledDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid scheduled_date: want YYYY-MM-DD")
			return
		}
		in.ScheduledDate = d
	}

	t, err := h.svc.CreateTask(in)
	if err != nil {
		writeServiceError(w, h.logger, "create task", err)
		return
	}
	h.broadcast(websocket.NewMessage("task", "created", t.ID, nil))
	writeJSON(w, http.StatusCreated, t)
}

// Get handles GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	t, err := h.tasks.GetByID(id)
	if err != nil {
		h.logger.Error("get task", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type taskTransitionRequest struct {
	CostCents int64  `json:"cost_cents"`
	Notes     string `json:"notes"`
}

// Start handles POST /api/tasks/{id}/start
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "started", func(id int64, _ taskTransitionRequest) (*model.MaintenanceTask, error) {
		return h.svc.StartTask(id)
	})
}

// Complete handles POST /api/tasks/{id}/complete
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "completed", func(id int64, req taskTransitionRequest) (*model.MaintenanceTask, error) {
		return h.svc.CompleteTask(id, req.CostCents, req.Notes)
	})
}

// Cancel handles POST /api/tasks/{id}/cancel
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancelled", func(id int64, req taskTransitionRequest) (*model.MaintenanceTask, error) {
		return h.svc.CancelTask(id, req.Notes)
	})
}

func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request, action string, fn func(int64, taskTransitionRequest) (*model.MaintenanceTask, error)) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req taskTransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := fn(id, req)
	if err != nil {
		writeServiceError(w, h.logger, "update task", err)
		return
	}
	h.broadcast(websocket.NewMessage("task", action, t.ID, map[string]any{"status": t.Status}))
	writeJSON(w, http.StatusOK, t)
}
