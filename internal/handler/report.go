package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/maintenance"
	"github.com/dukerupert/gymops/internal/store"
)

type ReportHandler struct {
	svc     *maintenance.Service
	history *store.HistoryStore
	logger  *slog.Logger
}

func NewReportHandler(svc *maintenance.Service, hs *store.HistoryStore, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, history: hs, logger: logger}
}

// History handles GET /api/history?from=&to=&equipment_id=
func (h *ReportHandler) History(w http.ResponseWriter, r *http.Request) {
	var f store.HistoryFilter
	var err error
	if f.EquipmentID, err = parseInt64Query(r, "equipment_id"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.From, err = parseDateQuery(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.To, err = parseDateQuery(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.history.List(f)
	if err != nil {
		h.logger.Error("list history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

// Costs handles GET /api/reports/costs?from=&to=. The range defaults to
// the twelve months ending today.
func (h *ReportHandler) Costs(w http.ResponseWriter, r *http.Request) {
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
	today := h.svc.Today()
	if to == nil {
		to = &today
	}
	if from == nil {
		start := to.AddDate(-1, 0, 1)
		from = &start
	}
	if from.After(*to) {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	months, err := h.history.CostByMonth(*from, *to)
	if err != nil {
		h.logger.Error("cost by month", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build cost report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":   clock.Format(*from),
		"to":     clock.Format(*to),
		"months": emptyIfNil(months),
	})
}

// Reliability handles GET /api/reports/reliability
func (h *ReportHandler) Reliability(w http.ResponseWriter, r *http.Request) {
	rows, err := h.history.ReliabilityByEquipment()
	if err != nil {
		h.logger.Error("reliability report", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build reliability report")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(rows))
}

// Dashboard handles GET /api/dashboard
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard()
	if err != nil {
		writeServiceError(w, h.logger, "build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
