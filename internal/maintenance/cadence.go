package maintenance

import "github.com/dukerupert/gymops/internal/model"

// Cadence holds the interval in days for each recurring maintenance type.
type Cadence struct {
	Cleaning    int `json:"cleaning"`
	Inspection  int `json:"inspection"`
	Maintenance int `json:"maintenance"`
}

// Interval returns the number of days between occurrences of t.
func (c Cadence) Interval(t model.MaintenanceType) int {
	switch t {
	case model.MaintenanceCleaning:
		return c.Cleaning
	case model.MaintenanceInspection:
		return c.Inspection
	case model.MaintenanceMaintenance:
		return c.Maintenance
	}
	return 0
}

var cadences = map[model.Priority]Cadence{
	model.PriorityCritical: {Cleaning: 1, Inspection: 3, Maintenance: 7},
	model.PriorityHigh:     {Cleaning: 1, Inspection: 7, Maintenance: 30},
	model.PriorityMedium:   {Cleaning: 3, Inspection: 14, Maintenance: 60},
	model.PriorityLow:      {Cleaning: 7, Inspection: 30, Maintenance: 90},
}

// DefaultPriority is used when equipment carries a priority the cadence
// table does not know.
const DefaultPriority = model.PriorityMedium

// CadenceFor looks up the cadence for p. Unknown priorities get the
// DefaultPriority cadence and ok=false.
func CadenceFor(p model.Priority) (c Cadence, ok bool) {
	c, ok = cadences[p]
	if !ok {
		return cadences[DefaultPriority], false
	}
	return c, true
}
