package server

import (
	"fmt"

	"github.com/dukerupert/gymops/internal/auth"
	"github.com/dukerupert/gymops/internal/store"
)

// BootstrapOperator creates the first operator on an empty database and
// returns its bearer token. The token is not stored anywhere and cannot be
// recovered later. It returns "" when operators already exist.
func BootstrapOperator(operators *store.OperatorStore, name string) (string, error) {
	n, err := operators.Count()
	if err != nil {
		return "", err
	}
	if n > 0 {
		return "", nil
	}

	secret, hash, err := auth.NewSecret()
	if err != nil {
		return "", err
	}
	op, err := operators.Create(name, "", hash)
	if err != nil {
		return "", fmt.Errorf("create bootstrap operator: %w", err)
	}
	return auth.FormatToken(op.ID, secret), nil
}
