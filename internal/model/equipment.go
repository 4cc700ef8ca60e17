package model

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists every tier from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority normalizes s and reports whether it names a known tier.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return p, true
	}
	return p, false
}

// Rank orders priorities for display: critical=4 down to low=1, 0 if unknown.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type EquipmentStatus string

const (
	EquipmentActive   EquipmentStatus = "active"
	EquipmentInactive EquipmentStatus = "inactive"
	EquipmentRetired  EquipmentStatus = "retired"
)

func ParseEquipmentStatus(s string) (EquipmentStatus, bool) {
	st := EquipmentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case EquipmentActive, EquipmentInactive, EquipmentRetired:
		return st, true
	}
	return st, false
}

type Equipment struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Location  string          `json:"location"`
	Priority  Priority        `json:"priority"`
	Status    EquipmentStatus `json:"status"`
	Notes     string          `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
