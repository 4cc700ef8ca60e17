package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
)

type ScheduleStore struct {
	db DBTX
}

func NewScheduleStore(db DBTX) *ScheduleStore {
	return &ScheduleStore{db: db}
}

const scheduleCols = `id, equipment_id, maintenance_type, priority, interval_days, next_due_date, last_completed_date, is_active, close_reason, previous_schedule_id, notes, created_at, updated_at`

// scheduleColsAs is scheduleCols qualified with the "s" alias for joins.
const scheduleColsAs = `s.id, s.equipment_id, s.maintenance_type, s.priority, s.interval_days, s.next_due_date, s.last_completed_date, s.is_active, s.close_reason, s.previous_schedule_id, s.notes, s.created_at, s.updated_at`

func scanSchedule(scanner interface{ Scan(...any) error }, extra ...any) (*model.MaintenanceSchedule, error) {
	var sc model.MaintenanceSchedule
	var nextDue string
	var lastCompleted sql.NullString
	var prevID sql.NullInt64

	dest := []any{
		&sc.ID, &sc.EquipmentID, &sc.MaintenanceType, &sc.Priority, &sc.IntervalDays,
		&nextDue, &lastCompleted, &sc.IsActive, &sc.CloseReason, &prevID, &sc.Notes,
		&sc.CreatedAt, &sc.UpdatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	due, err := clock.Parse(nextDue)
	if err != nil {
		return nil, fmt.Errorf("schedule %d: parse next_due_date %q: %w", sc.ID, nextDue, err)
	}
	sc.NextDueDate = due
	if sc.LastCompletedDate, err = parseNullDate(lastCompleted); err != nil {
		return nil, fmt.Errorf("schedule %d: parse last_completed_date %q: %w", sc.ID, lastCompleted.String, err)
	}
	if prevID.Valid {
		sc.PreviousScheduleID = &prevID.Int64
	}
	return &sc, nil
}

func collectSchedules(rows *sql.Rows) ([]model.MaintenanceSchedule, error) {
	defer rows.Close()
	var out []model.MaintenanceSchedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// ScheduleInput is a new schedule row. New rows are always active.
type ScheduleInput struct {
	EquipmentID        int64
	MaintenanceType    model.MaintenanceType
	Priority           model.Priority
	IntervalDays       int
	NextDueDate        time.Time
	LastCompletedDate  *time.Time
	PreviousScheduleID *int64
	Notes              string
}

func (s *ScheduleStore) Create(in ScheduleInput) (*model.MaintenanceSchedule, error) {
	result, err := s.db.Exec(
		`INSERT INTO maintenance_schedules (equipment_id, maintenance_type, priority, interval_days, next_due_date, last_completed_date, is_active, previous_schedule_id, notes)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		in.EquipmentID, in.MaintenanceType, in.Priority, in.IntervalDays,
		clock.Format(in.NextDueDate), nullDate(in.LastCompletedDate), nullInt64(in.PreviousScheduleID), in.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ScheduleStore) GetByID(id int64) (*model.MaintenanceSchedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleCols+` FROM maintenance_schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sc, nil
}

// ScheduleFilter narrows List. Zero values match everything.
type ScheduleFilter struct {
	EquipmentID     int64
	MaintenanceType model.MaintenanceType
	ActiveOnly      bool
}

func (s *ScheduleStore) List(f ScheduleFilter) ([]model.MaintenanceSchedule, error) {
	var where []string
	var args []any
	if f.EquipmentID != 0 {
		where = append(where, "equipment_id = ?")
		args = append(args, f.EquipmentID)
	}
	if f.MaintenanceType != "" {
		where = append(where, "maintenance_type = ?")
		args = append(args, f.MaintenanceType)
	}
	if f.ActiveOnly {
		where = append(where, "is_active = 1")
	}

	query := `SELECT ` + scheduleCols + ` FROM maintenance_schedules`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY next_due_date ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return collectSchedules(rows)
}

// ListActive returns every active schedule, newest first within each pair.
func (s *ScheduleStore) ListActive() ([]model.MaintenanceSchedule, error) {
	rows, err := s.db.Query(
		`SELECT ` + scheduleCols + ` FROM maintenance_schedules WHERE is_active = 1
		 ORDER BY equipment_id ASC, maintenance_type ASC, created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	return collectSchedules(rows)
}

// ListActiveByEquipment returns the active schedules of one piece of equipment.
func (s *ScheduleStore) ListActiveByEquipment(equipmentID int64) ([]model.MaintenanceSchedule, error) {
	rows, err := s.db.Query(
		`SELECT `+scheduleCols+` FROM maintenance_schedules WHERE equipment_id = ? AND is_active = 1
		 ORDER BY maintenance_type ASC, created_at DESC, id DESC`,
		equipmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active schedules by equipment: %w", err)
	}
	return collectSchedules(rows)
}

// FindActiveOnDate returns an active schedule for the pair due on date, if any.
func (s *ScheduleStore) FindActiveOnDate(equipmentID int64, mt model.MaintenanceType, date time.Time) (*model.MaintenanceSchedule, error) {
	row := s.db.QueryRow(
		`SELECT `+scheduleCols+` FROM maintenance_schedules
		 WHERE equipment_id = ? AND maintenance_type = ? AND next_due_date = ? AND is_active = 1
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		equipmentID, mt, clock.Format(date),
	)
	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active schedule on date: %w", err)
	}
	return sc, nil
}

// CloseByID deactivates one schedule if it is still active and reports
// whether it did. lastCompleted is only written when non-nil.
func (s *ScheduleStore) CloseByID(id int64, reason model.CloseReason, lastCompleted *time.Time, note string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE maintenance_schedules
		 SET is_active = 0, close_reason = ?,
		     last_completed_date = COALESCE(?, last_completed_date),
		     notes = CASE WHEN ? = '' THEN notes WHEN notes = '' THEN ? ELSE notes || char(10) || ? END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND is_active = 1`,
		reason, nullDate(lastCompleted), note, note, note, id,
	)
	if err != nil {
		return false, fmt.Errorf("close schedule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// CloseActive deactivates every active schedule of the pair and returns how
// many rows changed.
func (s *ScheduleStore) CloseActive(equipmentID int64, mt model.MaintenanceType, reason model.CloseReason, lastCompleted *time.Time, note string) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE maintenance_schedules
		 SET is_active = 0, close_reason = ?,
		     last_completed_date = COALESCE(?, last_completed_date),
		     notes = CASE WHEN ? = '' THEN notes WHEN notes = '' THEN ? ELSE notes || char(10) || ? END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE equipment_id = ? AND maintenance_type = ? AND is_active = 1`,
		reason, nullDate(lastCompleted), note, note, note, equipmentID, mt,
	)
	if err != nil {
		return 0, fmt.Errorf("close active schedules: %w", err)
	}
	return result.RowsAffected()
}

// ListOverdue returns active schedules due before date whose equipment is active.
func (s *ScheduleStore) ListOverdue(date time.Time) ([]model.DueSchedule, error) {
	return s.listDue(`s.next_due_date < ?`, date)
}

// ListDueOn returns active schedules due exactly on date whose equipment is active.
func (s *ScheduleStore) ListDueOn(date time.Time) ([]model.DueSchedule, error) {
	return s.listDue(`s.next_due_date = ?`, date)
}

// listDue skips rows that fail to decode so one corrupt schedule cannot hide
// the rest; the skipped rows come back joined in the error alongside the
// rows that did decode.
func (s *ScheduleStore) listDue(cond string, date time.Time) ([]model.DueSchedule, error) {
	rows, err := s.db.Query(
		`SELECT `+scheduleColsAs+`, e.name, e.priority
		 FROM maintenance_schedules s
		 JOIN equipment e ON e.id = s.equipment_id
		 WHERE s.is_active = 1 AND e.status = 'active' AND `+cond+`
		 ORDER BY s.next_due_date ASC, s.id ASC`,
		clock.Format(date),
	)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()

	var out []model.DueSchedule
	var bad []error
	for rows.Next() {
		var d model.DueSchedule
		sc, err := scanSchedule(rows, &d.EquipmentName, &d.EquipmentPriority)
		if err != nil {
			bad = append(bad, fmt.Errorf("scan due schedule: %w", err))
			continue
		}
		d.MaintenanceSchedule = *sc
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("list due schedules: %w", err)
	}
	return out, errors.Join(bad...)
}

// ActiveCounts buckets active schedules of active equipment around today.
type ActiveCounts struct {
	Total    int `json:"total"`
	Overdue  int `json:"overdue"`
	DueToday int `json:"due_today"`
	Upcoming int `json:"upcoming"`
}

// CountActive counts active schedules; Upcoming covers (today, upcomingUntil].
func (s *ScheduleStore) CountActive(today, upcomingUntil time.Time) (ActiveCounts, error) {
	t := clock.Format(today)
	var c ActiveCounts
	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN s.next_due_date < ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN s.next_due_date = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN s.next_due_date > ? AND s.next_due_date <= ? THEN 1 ELSE 0 END), 0)
		 FROM maintenance_schedules s
		 JOIN equipment e ON e.id = s.equipment_id
		 WHERE s.is_active = 1 AND e.status = 'active'`,
		t, t, t, clock.Format(upcomingUntil),
	).Scan(&c.Total, &c.Overdue, &c.DueToday, &c.Upcoming)
	if err != nil {
		return ActiveCounts{}, fmt.Errorf("count active schedules: %w", err)
	}
	return c, nil
}
