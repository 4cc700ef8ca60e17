package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
)

// HistoryStore is insert-only: maintenance history is never updated.
type HistoryStore struct {
	db DBTX
}

func NewHistoryStore(db DBTX) *HistoryStore {
	return &HistoryStore{db: db}
}

const historyCols = `id, equipment_id, schedule_id, maintenance_type, performed_date, performed_by, cost_cents, duration_minutes, result, notes, created_at`

func scanHistory(scanner interface{ Scan(...any) error }) (*model.MaintenanceHistory, error) {
	var h model.MaintenanceHistory
	var scheduleID sql.NullInt64
	var performed string
	err := scanner.Scan(
		&h.ID, &h.EquipmentID, &scheduleID, &h.MaintenanceType, &performed,
		&h.PerformedBy, &h.CostCents, &h.DurationMinutes, &h.Result, &h.Notes, &h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if scheduleID.Valid {
		h.ScheduleID = &scheduleID.Int64
	}
	if h.PerformedDate, err = clock.Parse(performed); err != nil {
		return nil, fmt.Errorf("parse performed_date %q: %w", performed, err)
	}
	return &h, nil
}

type HistoryInput struct {
	EquipmentID     int64
	ScheduleID      *int64
	MaintenanceType model.MaintenanceType
	PerformedDate   time.Time
	PerformedBy     string
	CostCents       int64
	DurationMinutes int
	Result          string
	Notes           string
}

func (s *HistoryStore) Create(in HistoryInput) (*model.MaintenanceHistory, error) {
	if in.Result == "" {
		in.Result = model.HistoryResultCompleted
	}
	result, err := s.db.Exec(
		`INSERT INTO maintenance_history (equipment_id, schedule_id, maintenance_type, performed_date, performed_by, cost_cents, duration_minutes, result, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.EquipmentID, nullInt64(in.ScheduleID), in.MaintenanceType, clock.Format(in.PerformedDate),
		in.PerformedBy, in.CostCents, in.DurationMinutes, in.Result, in.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HistoryStore) GetByID(id int64) (*model.MaintenanceHistory, error) {
	row := s.db.QueryRow(`SELECT `+historyCols+` FROM maintenance_history WHERE id = ?`, id)
	h, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return h, nil
}

// HistoryFilter narrows List. From and To are inclusive calendar dates.
type HistoryFilter struct {
	EquipmentID int64
	ScheduleID  int64
	From        *time.Time
	To          *time.Time
}

func (s *HistoryStore) List(f HistoryFilter) ([]model.MaintenanceHistory, error) {
	var where []string
	var args []any
	if f.EquipmentID != 0 {
		where = append(where, "equipment_id = ?")
		args = append(args, f.EquipmentID)
	}
	if f.ScheduleID != 0 {
		where = append(where, "schedule_id = ?")
		args = append(args, f.ScheduleID)
	}
	if f.From != nil {
		where = append(where, "performed_date >= ?")
		args = append(args, clock.Format(*f.From))
	}
	if f.To != nil {
		where = append(where, "performed_date <= ?")
		args = append(args, clock.Format(*f.To))
	}

	query := `SELECT ` + historyCols + ` FROM maintenance_history`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY performed_date DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []model.MaintenanceHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// CostByMonth sums recorded cost per calendar month between from and to inclusive.
func (s *HistoryStore) CostByMonth(from, to time.Time) ([]model.MonthlyCost, error) {
	rows, err := s.db.Query(
		`SELECT substr(performed_date, 1, 7) AS month, COUNT(*), COALESCE(SUM(cost_cents), 0)
		 FROM maintenance_history
		 WHERE performed_date >= ? AND performed_date <= ?
		 GROUP BY month ORDER BY month ASC`,
		clock.Format(from), clock.Format(to),
	)
	if err != nil {
		return nil, fmt.Errorf("cost by month: %w", err)
	}
	defer rows.Close()

	var out []model.MonthlyCost
	for rows.Next() {
		var m model.MonthlyCost
		if err := rows.Scan(&m.Month, &m.Count, &m.CostCents); err != nil {
			return nil, fmt.Errorf("scan monthly cost: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ReliabilityByEquipment summarizes completions and skips per equipment.
// Skips come from the schedule chain since they leave no history.
func (s *HistoryStore) ReliabilityByEquipment() ([]model.EquipmentReliability, error) {
	rows, err := s.db.Query(
		`SELECT e.id, e.name,
		        COALESCE(h.completions, 0), COALESCE(k.skips, 0),
		        COALESCE(h.total_cost, 0), COALESCE(h.avg_duration, 0), h.last_performed
		 FROM equipment e
		 LEFT JOIN (
		     SELECT equipment_id, COUNT(*) AS completions, SUM(cost_cents) AS total_cost,
		            AVG(duration_minutes) AS avg_duration, MAX(performed_date) AS last_performed
		     FROM maintenance_history GROUP BY equipment_id
		 ) h ON h.equipment_id = e.id
		 LEFT JOIN (
		     SELECT equipment_id, COUNT(*) AS skips
		     FROM maintenance_schedules WHERE close_reason = 'skipped' GROUP BY equipment_id
		 ) k ON k.equipment_id = e.id
		 ORDER BY e.name ASC, e.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("reliability by equipment: %w", err)
	}
	defer rows.Close()

	var out []model.EquipmentReliability
	for rows.Next() {
		var r model.EquipmentReliability
		var last sql.NullString
		if err := rows.Scan(&r.EquipmentID, &r.EquipmentName, &r.Completions, &r.Skips,
			&r.TotalCostCents, &r.AvgDurationMinutes, &last); err != nil {
			return nil, fmt.Errorf("scan reliability: %w", err)
		}
		if r.LastPerformed, err = parseNullDate(last); err != nil {
			return nil, fmt.Errorf("parse last performed: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
