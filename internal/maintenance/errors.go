package maintenance

import "errors"

var (
	// ErrNotFound is returned when a referenced schedule, equipment or task
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyProcessed is returned when completing or skipping a schedule
	// that is no longer active.
	ErrAlreadyProcessed = errors.New("schedule already processed")

	ErrEquipmentInactive = errors.New("equipment is not active")

	ErrInvalidTransition = errors.New("invalid task status transition")

	ErrInvalidInput = errors.New("invalid input")
)
