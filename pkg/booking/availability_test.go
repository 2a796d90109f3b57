package booking

import (
	"context"
	"errors"
	"testing"
)

func TestCourtBusyRangesSortedAndFiltered(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	if _, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "14:00", "15:00")); err != nil {
		t.Fatalf("booking: %v", err)
	}
	if _, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "09:00", "10:00")); err != nil {
		t.Fatalf("booking: %v", err)
	}
	cancelled, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "11:00", "12:00"))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if err := service.CancelReservation(context.Background(), cancelled.Reservations[0].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	busy, err := service.CourtBusyRanges(context.Background(), 1, mustDate(t, "2026-09-12"))
	if err != nil {
		t.Fatalf("busy ranges: %v", err)
	}
	if len(busy) != 2 {
		t.Fatalf("expected 2 busy ranges, got %d", len(busy))
	}
	if busy[0].Start.String() != "09:00" || busy[1].Start.String() != "14:00" {
		t.Fatalf("expected sorted ranges, got %+v", busy)
	}
}

func TestCourtBusyRangesUnknownCourt(t *testing.T) {
	t.Parallel()
	service := mustNewService(t, newStubStore())
	_, err := service.CourtBusyRanges(context.Background(), 99, mustDate(t, "2026-09-12"))
	if !errors.Is(err, ErrCourtNotFound) {
		t.Fatalf("expected ErrCourtNotFound, got %v", err)
	}
}

func TestIsCourtSlotFree(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)
	date := mustDate(t, "2026-09-12")

	booked, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00"))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}

	free, err := service.IsCourtSlotFree(context.Background(), 1, date, mustWindow(t, "10:30", "11:30"), 0)
	if err != nil {
		t.Fatalf("slot check: %v", err)
	}
	if free {
		t.Fatal("overlapping slot must not be free")
	}

	free, err = service.IsCourtSlotFree(context.Background(), 1, date, mustWindow(t, "11:00", "12:00"), 0)
	if err != nil {
		t.Fatalf("slot check: %v", err)
	}
	if !free {
		t.Fatal("adjacent slot must be free")
	}

	// A reservation never conflicts with itself when excluded.
	free, err = service.IsCourtSlotFree(context.Background(), 1, date, mustWindow(t, "10:00", "11:00"), booked.Reservations[0].ID)
	if err != nil {
		t.Fatalf("slot check: %v", err)
	}
	if !free {
		t.Fatal("excluded reservation must not block its own window")
	}
}

func TestEquipmentAvailabilityDerivedFromRentals(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)
	date := mustDate(t, "2026-09-12")

	if _, err := service.CreateCashBooking(context.Background(), requestForEquipment(t, 10, 4, "10:00", "12:00")); err != nil {
		t.Fatalf("rental: %v", err)
	}

	report, err := service.EquipmentAvailability(context.Background(), date, mustWindow(t, "11:00", "13:00"))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	byID := make(map[int64]EquipmentAvailability, len(report))
	for _, item := range report {
		byID[item.EquipmentID] = item
	}

	rackets := byID[10]
	if rackets.Reserved != 4 || rackets.Available != 1 || rackets.Status != "Available" {
		t.Fatalf("unexpected racket availability: %+v", rackets)
	}
	tubes := byID[11]
	if tubes.Reserved != 0 || tubes.Available != 12 {
		t.Fatalf("unexpected tube availability: %+v", tubes)
	}

	// Outside the rented window the full stock is back.
	report, err = service.EquipmentAvailability(context.Background(), date, mustWindow(t, "12:00", "14:00"))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	for _, item := range report {
		if item.EquipmentID == 10 && item.Available != 5 {
			t.Fatalf("expected full stock outside window, got %+v", item)
		}
	}
}

func TestEquipmentAvailabilityReportsUnavailable(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	if _, err := service.CreateCashBooking(context.Background(), requestForEquipment(t, 10, 5, "10:00", "12:00")); err != nil {
		t.Fatalf("rental: %v", err)
	}
	report, err := service.EquipmentAvailability(context.Background(), mustDate(t, "2026-09-12"), mustWindow(t, "10:00", "11:00"))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	for _, item := range report {
		if item.EquipmentID == 10 {
			if item.Available != 0 || item.Status != "Unavailable" {
				t.Fatalf("expected exhausted item, got %+v", item)
			}
		}
	}
}

func TestCheckDuplicateFlagsOwnOverlap(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)
	date := mustDate(t, "2026-09-12")

	if _, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00")); err != nil {
		t.Fatalf("booking: %v", err)
	}

	check, err := service.CheckDuplicate(context.Background(), 7, 1, date, mustWindow(t, "10:30", "11:30"))
	if err != nil {
		t.Fatalf("duplicate check: %v", err)
	}
	if !check.IsDuplicate {
		t.Fatal("expected duplicate for the same user and overlapping window")
	}
	if check.Message == "" {
		t.Fatal("expected a human-readable message")
	}

	// Another user's overlap is not this user's duplicate.
	check, err = service.CheckDuplicate(context.Background(), 8, 1, date, mustWindow(t, "10:30", "11:30"))
	if err != nil {
		t.Fatalf("duplicate check: %v", err)
	}
	if check.IsDuplicate {
		t.Fatal("another user's reservation must not flag as duplicate")
	}

	// A different window for the same user is clean.
	check, err = service.CheckDuplicate(context.Background(), 7, 1, date, mustWindow(t, "12:00", "13:00"))
	if err != nil {
		t.Fatalf("duplicate check: %v", err)
	}
	if check.IsDuplicate {
		t.Fatal("non-overlapping window must not flag as duplicate")
	}
}

func TestCheckDuplicateIgnoresCancelled(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)
	date := mustDate(t, "2026-09-12")

	created, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00"))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if err := service.CancelReservation(context.Background(), created.Reservations[0].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	check, err := service.CheckDuplicate(context.Background(), 7, 1, date, mustWindow(t, "10:00", "11:00"))
	if err != nil {
		t.Fatalf("duplicate check: %v", err)
	}
	if check.IsDuplicate {
		t.Fatal("cancelled reservations must not flag as duplicate")
	}
}
