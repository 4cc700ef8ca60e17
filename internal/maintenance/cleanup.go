package maintenance

import (
	"fmt"

	"github.com/dukerupert/gymops/internal/model"
)

type CleanupResult struct {
	Checked         int     `json:"checked"`
	DuplicateGroups int     `json:"duplicate_groups"`
	Deactivated     int     `json:"deactivated"`
	Kept            []int64 `json:"kept"`
}

// CleanupDuplicateSchedules keeps the newest active schedule of every
// (equipment, maintenance type) pair and closes the rest. Running it again
// right away deactivates nothing.
func (s *Service) CleanupDuplicateSchedules() (*CleanupResult, error) {
	res := &CleanupResult{Kept: []int64{}}
	err := s.inTx(func(st txStores) error {
		// Ordered by pair, then newest first.
		active, err := st.schedules.ListActive()
		if err != nil {
			return err
		}
		res.Checked = len(active)

		var keep *model.MaintenanceSchedule
		for i := range active {
			sc := &active[i]
			if keep == nil || keep.EquipmentID != sc.EquipmentID || keep.MaintenanceType != sc.MaintenanceType {
				keep = sc
				continue
			}
			if len(res.Kept) == 0 || res.Kept[len(res.Kept)-1] != keep.ID {
				res.Kept = append(res.Kept, keep.ID)
				res.DuplicateGroups++
			}

			note := fmt.Sprintf("Deactivated duplicate of schedule #%d", keep.ID)
			ok, err := st.schedules.CloseByID(sc.ID, model.CloseDuplicate, nil, note)
			if err != nil {
				return err
			}
			if ok {
				res.Deactivated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Deactivated > 0 {
		s.logger.Warn("duplicate schedules deactivated", "groups", res.DuplicateGroups, "deactivated", res.Deactivated)
	} else {
		s.logger.Debug("no duplicate schedules", "checked", res.Checked)
	}
	return res, nil
}
