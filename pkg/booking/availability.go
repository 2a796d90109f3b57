package booking

import (
	"context"
	"sort"
)

const (
	equipmentStatusAvailable   = "Available"
	equipmentStatusUnavailable = "Unavailable"
)

// CourtBusyRanges returns the reserved windows for a court and date,
// excluding cancelled reservations, sorted by start time.
func (service *Service) CourtBusyRanges(ctx context.Context, courtID int64, date DateOnly) ([]TimeRange, error) {
	if _, err := service.store.GetCourt(ctx, courtID); err != nil {
		return nil, err
	}
	windows, err := service.store.ListCourtReservations(ctx, courtID, date, 0)
	if err != nil {
		return nil, err
	}
	busy := make([]TimeRange, 0, len(windows))
	for _, window := range windows {
		if window.Status.BlocksSlot() {
			busy = append(busy, window.Window)
		}
	}
	sort.Slice(busy, func(left, right int) bool { return busy[left].Start < busy[right].Start })
	return busy, nil
}

// IsCourtSlotFree reports whether a candidate window is clear of every
// non-cancelled reservation. excludeReservationID supports update-in-place
// checks and is ignored when zero.
func (service *Service) IsCourtSlotFree(ctx context.Context, courtID int64, date DateOnly, window TimeRange, excludeReservationID int64) (bool, error) {
	if _, err := service.store.GetCourt(ctx, courtID); err != nil {
		return false, err
	}
	return service.courtSlotFree(ctx, service.store, courtID, date, window, excludeReservationID)
}

func (service *Service) courtSlotFree(ctx context.Context, store Store, courtID int64, date DateOnly, window TimeRange, excludeReservationID int64) (bool, error) {
	existing, err := store.ListCourtReservations(ctx, courtID, date, excludeReservationID)
	if err != nil {
		return false, err
	}
	for _, reserved := range existing {
		if reserved.Status.BlocksSlot() && reserved.Window.Overlaps(window) {
			return false, nil
		}
	}
	return true, nil
}

// EquipmentAvailability derives per-item stock for a window by summing the
// quantities of active rentals overlapping it, in one pass over the day's
// rental rows. Stock is never decremented; cancellation needs no repair.
func (service *Service) EquipmentAvailability(ctx context.Context, date DateOnly, window TimeRange) ([]EquipmentAvailability, error) {
	items, err := service.store.ListActiveEquipment(ctx)
	if err != nil {
		return nil, err
	}
	windows, err := service.store.ListRentalWindows(ctx, date)
	if err != nil {
		return nil, err
	}
	reservedByEquipment := make(map[int64]int, len(items))
	for _, rented := range windows {
		if rented.Window.Overlaps(window) {
			reservedByEquipment[rented.EquipmentID] += rented.Quantity
		}
	}
	report := make([]EquipmentAvailability, 0, len(items))
	for _, item := range items {
		reserved := reservedByEquipment[item.ID]
		available := item.Stock - reserved
		if available < 0 {
			available = 0
		}
		status := equipmentStatusAvailable
		if available == 0 {
			status = equipmentStatusUnavailable
		}
		report = append(report, EquipmentAvailability{
			EquipmentID: item.ID,
			Name:        item.Name,
			TotalStock:  item.Stock,
			Reserved:    reserved,
			Available:   available,
			Status:      status,
		})
	}
	return report, nil
}
