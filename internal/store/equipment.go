package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/gymops/internal/model"
)

type EquipmentStore struct {
	db DBTX
}

func NewEquipmentStore(db DBTX) *EquipmentStore {
	return &EquipmentStore{db: db}
}

func scanEquipment(scanner interface{ Scan(...any) error }) (*model.Equipment, error) {
	var e model.Equipment
	err := scanner.Scan(
		&e.ID, &e.Name, &e.Category, &e.Location, &e.Priority, &e.Status,
		&e.Notes, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const equipmentCols = `id, name, category, location, priority, status, notes, created_at, updated_at`

// EquipmentInput carries the writable fields of an equipment record.
type EquipmentInput struct {
	Name     string
	Category string
	Location string
	Priority model.Priority
	Status   model.EquipmentStatus
	Notes    string
}

func (s *EquipmentStore) Create(in EquipmentInput) (*model.Equipment, error) {
	result, err := s.db.Exec(
		`INSERT INTO equipment (name, category, location, priority, status, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, in.Category, in.Location, in.Priority, in.Status, in.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert equipment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EquipmentStore) GetByID(id int64) (*model.Equipment, error) {
	row := s.db.QueryRow(`SELECT `+equipmentCols+` FROM equipment WHERE id = ?`, id)
	e, err := scanEquipment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get equipment: %w", err)
	}
	return e, nil
}

// List returns equipment ordered by name. An empty status lists everything.
func (s *EquipmentStore) List(status model.EquipmentStatus) ([]model.Equipment, error) {
	query := `SELECT ` + equipmentCols + ` FROM equipment`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	defer rows.Close()

	var items []model.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan equipment: %w", err)
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

func (s *EquipmentStore) Update(id int64, in EquipmentInput) (*model.Equipment, error) {
	_, err := s.db.Exec(
		`UPDATE equipment SET name = ?, category = ?, location = ?, priority = ?, status = ?, notes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		in.Name, in.Category, in.Location, in.Priority, in.Status, in.Notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update equipment: %w", err)
	}
	return s.GetByID(id)
}

// CountByPriority counts non-retired equipment per priority tier.
func (s *EquipmentStore) CountByPriority() (map[model.Priority]int, error) {
	raw, err := s.countBy(`SELECT priority, COUNT(*) FROM equipment WHERE status != 'retired' GROUP BY priority`)
	if err != nil {
		return nil, err
	}
	counts := make(map[model.Priority]int, len(raw))
	for k, v := range raw {
		counts[model.Priority(k)] = v
	}
	return counts, nil
}

// CountByStatus counts equipment per status.
func (s *EquipmentStore) CountByStatus() (map[model.EquipmentStatus]int, error) {
	raw, err := s.countBy(`SELECT status, COUNT(*) FROM equipment GROUP BY status`)
	if err != nil {
		return nil, err
	}
	counts := make(map[model.EquipmentStatus]int, len(raw))
	for k, v := range raw {
		counts[model.EquipmentStatus(k)] = v
	}
	return counts, nil
}

func (s *EquipmentStore) countBy(query string) (map[string]int, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("count equipment: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan equipment count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
