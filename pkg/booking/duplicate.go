package booking

import (
	"context"
	"fmt"
)

// CheckDuplicate is the advisory pre-submission guard: does this user
// already hold a non-cancelled reservation overlapping the candidate window
// for the same court and date? The authoritative check always re-runs
// inside the creation transaction, so this only narrows the race window for
// UX purposes.
func (service *Service) CheckDuplicate(ctx context.Context, userID int64, courtID int64, date DateOnly, window TimeRange) (DuplicateCheck, error) {
	if _, err := NewTimeRange(window.Start, window.End); err != nil {
		return DuplicateCheck{}, err
	}
	if _, err := service.store.GetCourt(ctx, courtID); err != nil {
		return DuplicateCheck{}, err
	}
	existing, err := service.store.ListCourtReservations(ctx, courtID, date, 0)
	if err != nil {
		return DuplicateCheck{}, err
	}
	for _, reserved := range existing {
		if reserved.UserID != userID {
			continue
		}
		if reserved.Status.BlocksSlot() && reserved.Window.Overlaps(window) {
			return DuplicateCheck{
				IsDuplicate: true,
				Message: fmt.Sprintf("You already have a %s reservation for this court on %s from %s to %s.",
					reserved.Status, date, reserved.Window.Start, reserved.Window.End),
			}, nil
		}
	}
	return DuplicateCheck{}, nil
}
