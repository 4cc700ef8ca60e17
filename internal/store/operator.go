package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/gymops/internal/model"
)

type OperatorStore struct {
	db DBTX
}

func NewOperatorStore(db DBTX) *OperatorStore {
	return &OperatorStore{db: db}
}

const operatorCols = `id, name, email, token_hash, created_at`

func scanOperator(scanner interface{ Scan(...any) error }) (*model.Operator, error) {
	var o model.Operator
	if err := scanner.Scan(&o.ID, &o.Name, &o.Email, &o.TokenHash, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OperatorStore) Create(name, email, tokenHash string) (*model.Operator, error) {
	result, err := s.db.Exec(
		`INSERT INTO operators (name, email, token_hash) VALUES (?, ?, ?)`,
		name, email, tokenHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert operator: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *OperatorStore) GetByID(id int64) (*model.Operator, error) {
	row := s.db.QueryRow(`SELECT `+operatorCols+` FROM operators WHERE id = ?`, id)
	o, err := scanOperator(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get operator: %w", err)
	}
	return o, nil
}

func (s *OperatorStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM operators`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count operators: %w", err)
	}
	return n, nil
}
