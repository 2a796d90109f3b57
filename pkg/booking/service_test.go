package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCreateCashBookingConfirmsAndCompletes(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	result, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:30"))
	if err != nil {
		t.Fatalf("cash booking: %v", err)
	}
	if len(result.Reservations) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(result.Reservations))
	}
	if result.Reservations[0].Status != ReservationStatusConfirmed {
		t.Fatalf("expected confirmed reservation, got %s", result.Reservations[0].Status)
	}
	if result.Payment.Status != PaymentStatusCompleted || result.Payment.Method != PaymentMethodCash {
		t.Fatalf("unexpected payment: %+v", result.Payment)
	}
	// 250.00/hr court for 90 minutes.
	if result.Total != 37500 {
		t.Fatalf("expected total 37500 centavos, got %d", result.Total)
	}
	if result.Group.ReferenceNumber == "" {
		t.Fatal("expected a reference number")
	}
}

func TestCreateQRBookingStaysPending(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	result, err := service.CreateQRBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00"), "qr_code_1")
	if err != nil {
		t.Fatalf("qr booking: %v", err)
	}
	if result.Reservations[0].Status != ReservationStatusPending {
		t.Fatalf("expected pending reservation, got %s", result.Reservations[0].Status)
	}
	if result.Payment.Status != PaymentStatusPending || result.Payment.Method != PaymentMethodQRPh {
		t.Fatalf("unexpected payment: %+v", result.Payment)
	}
	if result.Reservations[0].ExternalReference != "qr_code_1" {
		t.Fatalf("expected external reference on anchor, got %q", result.Reservations[0].ExternalReference)
	}
}

func TestCreateQRBookingRequiresCodeID(t *testing.T) {
	t.Parallel()
	service := mustNewService(t, newStubStore())
	_, err := service.CreateQRBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00"), "  ")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestOverlappingBookingRejected(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	if _, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00")); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:30", "11:30"))
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}

	// Touching endpoints do not conflict.
	if _, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "11:00", "12:00")); err != nil {
		t.Fatalf("adjacent booking: %v", err)
	}
}

func TestOverlappingLinesWithinOneRequestRejected(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	request := requestForCourt(t, 1, "10:00", "11:00")
	request.Courts = append(request.Courts, CourtLine{CourtID: 1, Window: mustWindow(t, "10:30", "11:30")})

	_, err := service.CreateCashBooking(context.Background(), request)
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
	if len(store.reservations) != 0 {
		t.Fatalf("expected no persisted reservations, got %d", len(store.reservations))
	}

	// Adjacent lines for one court are fine.
	request = requestForCourt(t, 1, "10:00", "11:00")
	request.Courts = append(request.Courts, CourtLine{CourtID: 1, Window: mustWindow(t, "11:00", "12:00")})
	if _, err := service.CreateCashBooking(context.Background(), request); err != nil {
		t.Fatalf("adjacent lines: %v", err)
	}
}

func TestCancelledReservationFreesSlot(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	first, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00"))
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if err := service.CancelReservation(context.Background(), first.Reservations[0].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00")); err != nil {
		t.Fatalf("rebooking a freed slot: %v", err)
	}
}

func TestCancelCompletedReservationRejected(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	result, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00"))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	reservationID := result.Reservations[0].ID
	if err := store.UpdateReservationStatus(context.Background(), reservationID, ReservationStatusConfirmed, ReservationStatusCompleted); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	err = service.CancelReservation(context.Background(), reservationID)
	if !errors.Is(err, ErrReservationClosed) {
		t.Fatalf("expected ErrReservationClosed, got %v", err)
	}
}

func TestEquipmentStockCeiling(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	rent := func(quantity int) (BookingResult, error) {
		return service.CreateCashBooking(context.Background(), requestForEquipment(t, 10, quantity, "10:00", "12:00"))
	}

	// Stock of 5 rackets: 2+2 succeed, a further 2 would exceed.
	if _, err := rent(2); err != nil {
		t.Fatalf("first rental: %v", err)
	}
	if _, err := rent(2); err != nil {
		t.Fatalf("second rental: %v", err)
	}
	_, err := rent(2)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if _, err := rent(1); err != nil {
		t.Fatalf("renting the last unit: %v", err)
	}
}

func TestSameRequestEquipmentLinesStack(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	request := requestForEquipment(t, 10, 3, "10:00", "12:00")
	request.Equipment = append(request.Equipment, EquipmentLine{
		EquipmentID: 10,
		Quantity:    3,
		Window:      mustWindow(t, "11:00", "13:00"),
	})

	_, err := service.CreateCashBooking(context.Background(), request)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for stacked lines, got %v", err)
	}
}

func TestCreationIsAtomicOnFailure(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	request := requestForCourt(t, 1, "10:00", "11:00")
	request.Equipment = []EquipmentLine{
		{EquipmentID: 10, Quantity: 2, Window: mustWindow(t, "10:00", "11:00")},
		{EquipmentID: 10, Quantity: 9, Window: mustWindow(t, "10:00", "11:00")},
	}

	_, err := service.CreateCashBooking(context.Background(), request)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if len(store.reservations) != 0 {
		t.Fatalf("expected no reservations after rollback, got %d", len(store.reservations))
	}
	if len(store.payments) != 0 || len(store.rentalItems) != 0 {
		t.Fatalf("expected no payments or rentals after rollback")
	}

	// The slot stays bookable.
	if _, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00")); err != nil {
		t.Fatalf("rebooking after rollback: %v", err)
	}
}

func TestAmountMismatchRejected(t *testing.T) {
	t.Parallel()
	service := mustNewService(t, newStubStore())

	request := requestForCourt(t, 1, "10:00", "11:30")
	request.ClientAmount = 20000 // server computes 37500

	_, err := service.CreateCashBooking(context.Background(), request)
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
}

func TestAmountWithinToleranceAccepted(t *testing.T) {
	t.Parallel()
	service := mustNewService(t, newStubStore())

	request := requestForCourt(t, 1, "10:00", "11:30")
	request.ClientAmount = 37450

	if _, err := service.CreateCashBooking(context.Background(), request); err != nil {
		t.Fatalf("tolerated amount rejected: %v", err)
	}
}

func TestSiblingReservationsShareOneReference(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	request := requestForCourt(t, 1, "10:00", "11:00")
	request.Courts = append(request.Courts, CourtLine{CourtID: 2, Window: mustWindow(t, "10:00", "11:00")})

	result, err := service.CreateCashBooking(context.Background(), request)
	if err != nil {
		t.Fatalf("multi-court booking: %v", err)
	}
	if len(result.Reservations) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(result.Reservations))
	}
	if result.Reservations[0].ReferenceNumber != result.Reservations[1].ReferenceNumber {
		t.Fatal("siblings must share one reference number")
	}
	if len(store.payments) != 1 {
		t.Fatalf("expected one payment row for the group, got %d", len(store.payments))
	}
}

func TestReferenceNumbersAreDistinct(t *testing.T) {
	t.Parallel()
	seen := make(map[string]struct{}, 1000)
	for index := 0; index < 1000; index++ {
		reference := defaultReferenceNumber(1700000000)
		if _, exists := seen[reference]; exists {
			t.Fatalf("duplicate reference %s after %d generations", reference, index)
		}
		seen[reference] = struct{}{}
	}
}

func TestGuestBookingResolvesUser(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	request := requestForCourt(t, 1, "10:00", "11:00")
	request.UserID = 0
	request.Customer = GuestContact{Name: "Walk In", Contact: "09170001111"}
	request.Notes = "prefers court near entrance"

	result, err := service.CreateCashBooking(context.Background(), request)
	if err != nil {
		t.Fatalf("guest booking: %v", err)
	}
	if result.Reservations[0].UserID <= 0 {
		t.Fatal("expected a resolved guest user id")
	}
	notes := result.Reservations[0].Notes
	if notes != "Customer: Walk In | Contact: 09170001111 | prefers court near entrance" {
		t.Fatalf("unexpected notes: %q", notes)
	}
}

func TestGuestBookingRequiresName(t *testing.T) {
	t.Parallel()
	service := mustNewService(t, newStubStore())
	request := requestForCourt(t, 1, "10:00", "11:00")
	request.UserID = 0

	_, err := service.CreateCashBooking(context.Background(), request)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUnknownCourtRejected(t *testing.T) {
	t.Parallel()
	service := mustNewService(t, newStubStore())
	_, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 99, "10:00", "11:00"))
	if !errors.Is(err, ErrCourtNotFound) {
		t.Fatalf("expected ErrCourtNotFound, got %v", err)
	}
}

func TestPrepareCheckoutDoesNotPersist(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	quote, err := service.PrepareCheckout(context.Background(), requestForCourt(t, 1, "10:00", "11:30"))
	if err != nil {
		t.Fatalf("prepare checkout: %v", err)
	}
	if quote.Total != 37500 {
		t.Fatalf("expected 37500, got %d", quote.Total)
	}
	if len(quote.LineItems) != 1 || quote.LineItems[0].Name != "Court Reservation" {
		t.Fatalf("unexpected line items: %+v", quote.LineItems)
	}
	if len(store.reservations) != 0 {
		t.Fatal("checkout must not persist rows")
	}
}

func TestPrepareCheckoutReportsConflictEarly(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	if _, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00")); err != nil {
		t.Fatalf("booking: %v", err)
	}
	_, err := service.PrepareCheckout(context.Background(), requestForCourt(t, 1, "10:30", "11:30"))
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
}

func TestExpirePendingReservations(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	service := mustNewService(t, store)

	stale, err := service.CreateQRBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00"), "qr_stale")
	if err != nil {
		t.Fatalf("stale booking: %v", err)
	}
	store.createdAt[stale.Reservations[0].ID] = 100

	fresh, err := service.CreateQRBooking(context.Background(), requestForCourt(t, 1, "12:00", "13:00"), "qr_fresh")
	if err != nil {
		t.Fatalf("fresh booking: %v", err)
	}
	store.createdAt[fresh.Reservations[0].ID] = 2000

	expired, err := service.ExpirePendingReservations(context.Background(), 1000)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}
	staleRow := store.mustReservation(t, stale.Reservations[0].ID)
	if staleRow.Status != ReservationStatusCancelled {
		t.Fatalf("expected stale reservation cancelled, got %s", staleRow.Status)
	}
	freshRow := store.mustReservation(t, fresh.Reservations[0].ID)
	if freshRow.Status != ReservationStatusPending {
		t.Fatalf("expected fresh reservation untouched, got %s", freshRow.Status)
	}

	// The expired slot is bookable again.
	if _, err := service.CreateCashBooking(context.Background(), requestForCourt(t, 1, "10:00", "11:00")); err != nil {
		t.Fatalf("rebooking expired slot: %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()
	_, err := NewService(nil, func() int64 { return 0 })
	if !errors.Is(err, ErrInvalidServiceConfig) {
		t.Fatalf("expected invalid service config error, got %v", err)
	}
	_, err = NewService(newStubStore(), nil)
	if !errors.Is(err, ErrInvalidServiceConfig) {
		t.Fatalf("expected invalid service config error, got %v", err)
	}
}

// --- helpers ---

type storedRentalItem struct {
	reservationID int64
	date          DateOnly
	equipmentID   int64
	quantity      int
	window        TimeRange
}

type stubStore struct {
	courts       map[int64]Court
	equipment    map[int64]Equipment
	guests       map[string]int64
	nextUserID   int64
	nextID       int64
	reservations map[int64]Reservation
	payments     map[int64]Payment
	rentalItems  []storedRentalItem
	createdAt    map[int64]int64
}

func newStubStore() *stubStore {
	return &stubStore{
		courts: map[int64]Court{
			1: {ID: 1, Name: "Court 1", HourlyRate: 25000, Status: CourtStatusAvailable},
			2: {ID: 2, Name: "Court 2", HourlyRate: 30000, Status: CourtStatusAvailable},
		},
		equipment: map[int64]Equipment{
			10: {ID: 10, Name: "Racket", Stock: 5, HourlyRate: 5000, Status: "Active"},
			11: {ID: 11, Name: "Shuttlecock Tube", Stock: 12, HourlyRate: 2000, Status: "Active"},
		},
		guests:       make(map[string]int64),
		nextUserID:   100,
		reservations: make(map[int64]Reservation),
		payments:     make(map[int64]Payment),
		createdAt:    make(map[int64]int64),
	}
}

func (s *stubStore) clone() *stubStore {
	copied := &stubStore{
		courts:       s.courts,
		equipment:    s.equipment,
		guests:       make(map[string]int64, len(s.guests)),
		nextUserID:   s.nextUserID,
		nextID:       s.nextID,
		reservations: make(map[int64]Reservation, len(s.reservations)),
		payments:     make(map[int64]Payment, len(s.payments)),
		rentalItems:  append([]storedRentalItem(nil), s.rentalItems...),
		createdAt:    make(map[int64]int64, len(s.createdAt)),
	}
	for key, value := range s.guests {
		copied.guests[key] = value
	}
	for key, value := range s.reservations {
		copied.reservations[key] = value
	}
	for key, value := range s.payments {
		copied.payments[key] = value
	}
	for key, value := range s.createdAt {
		copied.createdAt[key] = value
	}
	return copied
}

func (s *stubStore) restore(from *stubStore) {
	s.guests = from.guests
	s.nextUserID = from.nextUserID
	s.nextID = from.nextID
	s.reservations = from.reservations
	s.payments = from.payments
	s.rentalItems = from.rentalItems
	s.createdAt = from.createdAt
}

func (s *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	snapshot := s.clone()
	if err := fn(ctx, s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *stubStore) GetCourt(ctx context.Context, courtID int64) (Court, error) {
	court, ok := s.courts[courtID]
	if !ok {
		return Court{}, fmt.Errorf("%w: %d", ErrCourtNotFound, courtID)
	}
	return court, nil
}

func (s *stubStore) GetEquipment(ctx context.Context, equipmentID int64) (Equipment, error) {
	equipment, ok := s.equipment[equipmentID]
	if !ok {
		return Equipment{}, fmt.Errorf("%w: %d", ErrEquipmentNotFound, equipmentID)
	}
	return equipment, nil
}

func (s *stubStore) ListActiveEquipment(ctx context.Context) ([]Equipment, error) {
	items := make([]Equipment, 0, len(s.equipment))
	for _, item := range s.equipment {
		if item.Status == "Active" {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *stubStore) GetOrCreateGuestUser(ctx context.Context, contact GuestContact) (int64, error) {
	key := contact.Name + "|" + contact.Contact + "|" + contact.Email
	if id, ok := s.guests[key]; ok {
		return id, nil
	}
	s.nextUserID++
	s.guests[key] = s.nextUserID
	return s.nextUserID, nil
}

func (s *stubStore) ListCourtReservations(ctx context.Context, courtID int64, date DateOnly, excludeReservationID int64) ([]ReservationWindow, error) {
	windows := make([]ReservationWindow, 0)
	for _, reservation := range s.reservations {
		if reservation.CourtID != courtID || reservation.Date != date {
			continue
		}
		if reservation.Status == ReservationStatusCancelled {
			continue
		}
		if excludeReservationID != 0 && reservation.ID == excludeReservationID {
			continue
		}
		windows = append(windows, ReservationWindow{
			ReservationID: reservation.ID,
			UserID:        reservation.UserID,
			Window:        reservation.Window,
			Status:        reservation.Status,
		})
	}
	return windows, nil
}

func (s *stubStore) ListRentalWindows(ctx context.Context, date DateOnly) ([]RentalWindow, error) {
	windows := make([]RentalWindow, 0)
	for _, item := range s.rentalItems {
		if item.date != date {
			continue
		}
		owner, ok := s.reservations[item.reservationID]
		if ok && owner.Status == ReservationStatusCancelled {
			continue
		}
		windows = append(windows, RentalWindow{
			EquipmentID: item.equipmentID,
			Quantity:    item.quantity,
			Window:      item.window,
		})
	}
	return windows, nil
}

func (s *stubStore) InsertBooking(ctx context.Context, record *BookingRecord) error {
	for index := range record.Reservations {
		candidate := record.Reservations[index]
		if candidate.ExternalReference != "" {
			for _, existing := range s.reservations {
				if existing.ExternalReference == candidate.ExternalReference {
					return fmt.Errorf("%w: %s", ErrDuplicateEvent, candidate.ExternalReference)
				}
			}
		}
		s.nextID++
		record.Reservations[index].ID = s.nextID
		s.reservations[s.nextID] = record.Reservations[index]
		s.createdAt[s.nextID] = 1700000000
	}
	anchorID := record.Reservations[0].ID
	record.Payment.ReservationID = anchorID
	s.payments[anchorID] = record.Payment
	if record.Rental != nil {
		record.Rental.ReservationID = anchorID
		for _, item := range record.Rental.Items {
			s.rentalItems = append(s.rentalItems, storedRentalItem{
				reservationID: anchorID,
				date:          record.Rental.Date,
				equipmentID:   item.EquipmentID,
				quantity:      item.Quantity,
				window:        item.Window,
			})
		}
	}
	return nil
}

func (s *stubStore) FindByExternalReference(ctx context.Context, externalReference string) ([]Reservation, error) {
	matches := make([]Reservation, 0, 1)
	for _, reservation := range s.reservations {
		if reservation.ExternalReference == externalReference && externalReference != "" {
			matches = append(matches, reservation)
		}
	}
	return matches, nil
}

func (s *stubStore) FindByReferenceNumber(ctx context.Context, referenceNumber string) ([]Reservation, error) {
	matches := make([]Reservation, 0, 2)
	for id := int64(1); id <= s.nextID; id++ {
		reservation, ok := s.reservations[id]
		if ok && reservation.ReferenceNumber == referenceNumber {
			matches = append(matches, reservation)
		}
	}
	return matches, nil
}

func (s *stubStore) GetReservation(ctx context.Context, reservationID int64) (Reservation, error) {
	reservation, ok := s.reservations[reservationID]
	if !ok {
		return Reservation{}, fmt.Errorf("%w: %d", ErrReservationNotFound, reservationID)
	}
	return reservation, nil
}

func (s *stubStore) UpdateReservationStatus(ctx context.Context, reservationID int64, from, to ReservationStatus) error {
	reservation, ok := s.reservations[reservationID]
	if !ok || reservation.Status != from {
		return fmt.Errorf("%w: reservation %d is not %s", ErrReservationClosed, reservationID, from)
	}
	reservation.Status = to
	s.reservations[reservationID] = reservation
	return nil
}

func (s *stubStore) UpdatePaymentStatus(ctx context.Context, reservationID int64, from, to PaymentStatus) error {
	payment, ok := s.payments[reservationID]
	if !ok || payment.Status != from {
		return fmt.Errorf("%w: no %s payment for reservation %d", ErrReservationNotFound, from, reservationID)
	}
	payment.Status = to
	s.payments[reservationID] = payment
	return nil
}

func (s *stubStore) ListExpiredPending(ctx context.Context, createdBeforeUnixUTC int64) ([]Reservation, error) {
	expired := make([]Reservation, 0)
	for id, reservation := range s.reservations {
		if reservation.Status == ReservationStatusPending && s.createdAt[id] < createdBeforeUnixUTC {
			expired = append(expired, reservation)
		}
	}
	return expired, nil
}

func (s *stubStore) mustReservation(t *testing.T, reservationID int64) Reservation {
	t.Helper()
	reservation, ok := s.reservations[reservationID]
	if !ok {
		t.Fatalf("reservation %d not found", reservationID)
	}
	return reservation
}

func mustNewService(t *testing.T, store Store) *Service {
	t.Helper()
	service, err := NewService(store, func() int64 { return 1700000000 })
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func mustWindow(t *testing.T, startRaw string, endRaw string) TimeRange {
	t.Helper()
	start, err := ParseTimeOfDay(startRaw)
	if err != nil {
		t.Fatalf("parse start %q: %v", startRaw, err)
	}
	end, err := ParseTimeOfDay(endRaw)
	if err != nil {
		t.Fatalf("parse end %q: %v", endRaw, err)
	}
	window, err := NewTimeRange(start, end)
	if err != nil {
		t.Fatalf("window %q-%q: %v", startRaw, endRaw, err)
	}
	return window
}

func mustDate(t *testing.T, raw string) DateOnly {
	t.Helper()
	date, err := ParseDateOnly(raw)
	if err != nil {
		t.Fatalf("parse date %q: %v", raw, err)
	}
	return date
}

func requestForCourt(t *testing.T, courtID int64, startRaw string, endRaw string) BookingRequest {
	t.Helper()
	return BookingRequest{
		UserID: 7,
		Date:   mustDate(t, "2026-09-12"),
		Courts: []CourtLine{{CourtID: courtID, Window: mustWindow(t, startRaw, endRaw)}},
		Method: PaymentMethodCash,
	}
}

func requestForEquipment(t *testing.T, equipmentID int64, quantity int, startRaw string, endRaw string) BookingRequest {
	t.Helper()
	return BookingRequest{
		UserID: 7,
		Date:   mustDate(t, "2026-09-12"),
		Equipment: []EquipmentLine{{
			EquipmentID: equipmentID,
			Quantity:    quantity,
			Window:      mustWindow(t, startRaw, endRaw),
		}},
		Method: PaymentMethodCash,
	}
}
