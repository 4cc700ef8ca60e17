package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
)

type TaskStore struct {
	db DBTX
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, equipment_id, kind, title, description, status, scheduled_date, started_at, completed_at, cost_cents, technician, notes, created_at, updated_at`

func scanTask(scanner interface{ Scan(...any) error }) (*model.MaintenanceTask, error) {
	var t model.MaintenanceTask
	var scheduled string
	var started, completed sql.NullTime
	err := scanner.Scan(
		&t.ID, &t.EquipmentID, &t.Kind, &t.Title, &t.Description, &t.Status, &scheduled,
		&started, &completed, &t.CostCents, &t.Technician, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.ScheduledDate, err = clock.Parse(scheduled); err != nil {
		return nil, fmt.Errorf("parse scheduled_date %q: %w", scheduled, err)
	}
	if started.Valid {
		t.StartedAt = &started.Time
	}
	if completed.Valid {
		t.CompletedAt = &completed.Time
	}
	return &t, nil
}

type TaskInput struct {
	EquipmentID   int64
	Kind          model.TaskKind
	Title         string
	Description   string
	ScheduledDate time.Time
	Technician    string
	Notes         string
}

func (s *TaskStore) Create(in TaskInput) (*model.MaintenanceTask, error) {
	result, err := s.db.Exec(
		`INSERT INTO maintenance_tasks (equipment_id, kind, title, description, scheduled_date, technician, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.EquipmentID, in.Kind, in.Title, in.Description, clock.Format(in.ScheduledDate), in.Technician, in.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.MaintenanceTask, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM maintenance_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// List returns tasks, optionally for one piece of equipment, soonest first.
func (s *TaskStore) List(equipmentID int64) ([]model.MaintenanceTask, error) {
	query := `SELECT ` + taskCols + ` FROM maintenance_tasks`
	var args []any
	if equipmentID != 0 {
		query += ` WHERE equipment_id = ?`
		args = append(args, equipmentID)
	}
	query += ` ORDER BY scheduled_date ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []model.MaintenanceTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// TransitionInput describes a status change. from guards against a
// concurrent transition; costCents and notes are applied on completion.
type TransitionInput struct {
	From      model.TaskStatus
	To        model.TaskStatus
	At        time.Time
	CostCents int64
	Notes     string
}

// Transition moves a task between statuses and reports whether the task was
// still in the expected status.
func (s *TaskStore) Transition(id int64, in TransitionInput) (bool, error) {
	var result sql.Result
	var err error
	switch in.To {
	case model.TaskInProgress:
		result, err = s.db.Exec(
			`UPDATE maintenance_tasks SET status = ?, started_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
			in.To, in.At.UTC(), id, in.From,
		)
	case model.TaskCompleted:
		result, err = s.db.Exec(
			`UPDATE maintenance_tasks SET status = ?, completed_at = ?, cost_cents = ?,
			     notes = CASE WHEN ? = '' THEN notes ELSE ? END, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND status = ?`,
			in.To, in.At.UTC(), in.CostCents, in.Notes, in.Notes, id, in.From,
		)
	default:
		result, err = s.db.Exec(
			`UPDATE maintenance_tasks SET status = ?, notes = CASE WHEN ? = '' THEN notes ELSE ? END, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND status = ?`,
			in.To, in.Notes, in.Notes, id, in.From,
		)
	}
	if err != nil {
		return false, fmt.Errorf("transition task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
