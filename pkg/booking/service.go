package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Service contains the reservation domain logic over a Store.
type Service struct {
	store       Store
	nowFn       func() int64
	referenceFn func(nowUnixUTC int64) string
	logger      OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, referenceFn: defaultReferenceNumber}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// defaultReferenceNumber yields a human-facing booking reference. The random
// suffix keeps concurrent creations within one second distinct.
func defaultReferenceNumber(nowUnixUTC int64) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return referencePrefix + strconv.FormatInt(nowUnixUTC, 10) + suffix
}

// creationParams fixes the statuses and external reference for one of the
// three entry paths.
type creationParams struct {
	reservationStatus ReservationStatus
	paymentStatus     PaymentStatus
	externalReference string
}

// PrepareCheckout validates and prices a self-service request without
// persisting anything. The quote feeds the gateway checkout session; the
// reservation itself is materialized later by the webhook reconciler.
func (service *Service) PrepareCheckout(ctx context.Context, request BookingRequest) (CheckoutQuote, error) {
	quote, err := service.prepareCheckout(ctx, request)
	service.logOperation(ctx, OperationLog{
		Operation: operationCheckout,
		UserID:    request.UserID,
		Amount:    quote.Total,
		Error:     err,
	})
	return quote, err
}

func (service *Service) prepareCheckout(ctx context.Context, request BookingRequest) (CheckoutQuote, error) {
	if err := request.Validate(); err != nil {
		return CheckoutQuote{}, err
	}
	courts, equipments, err := service.loadCatalog(ctx, service.store, request)
	if err != nil {
		return CheckoutQuote{}, err
	}
	if err := service.checkAvailability(ctx, service.store, request, 0); err != nil {
		return CheckoutQuote{}, err
	}
	quote, err := PriceRequest(request, courts, equipments)
	if err != nil {
		return CheckoutQuote{}, err
	}
	if err := CrossCheckAmount(request.ClientAmount, quote.Total); err != nil {
		return CheckoutQuote{}, err
	}
	return quote, nil
}

// CreateCashBooking is the admin-assisted path for money received in person:
// payment Completed and reservation Confirmed in one atomic unit.
func (service *Service) CreateCashBooking(ctx context.Context, request BookingRequest) (BookingResult, error) {
	request.Method = PaymentMethodCash
	request.AdminCreated = true
	result, err := service.createBooking(ctx, request, creationParams{
		reservationStatus: ReservationStatusConfirmed,
		paymentStatus:     PaymentStatusCompleted,
	})
	service.logOperation(ctx, OperationLog{
		Operation:       operationCashCreate,
		UserID:          request.UserID,
		ReferenceNumber: result.Group.ReferenceNumber,
		Amount:          result.Total,
		Error:           err,
	})
	return result, err
}

// CreateQRBooking is the admin-assisted QR Ph path: rows are created with a
// Pending payment keyed by the QR code id, confirmed later by webhook.
func (service *Service) CreateQRBooking(ctx context.Context, request BookingRequest, qrCodeID string) (BookingResult, error) {
	request.Method = PaymentMethodQRPh
	request.AdminCreated = true
	if strings.TrimSpace(qrCodeID) == "" {
		return BookingResult{}, fmt.Errorf("%w: qr code id is required", ErrValidation)
	}
	result, err := service.createBooking(ctx, request, creationParams{
		reservationStatus: ReservationStatusPending,
		paymentStatus:     PaymentStatusPending,
		externalReference: qrCodeID,
	})
	service.logOperation(ctx, OperationLog{
		Operation:         operationQRCreate,
		UserID:            request.UserID,
		ReferenceNumber:   result.Group.ReferenceNumber,
		ExternalReference: qrCodeID,
		Amount:            result.Total,
		Error:             err,
	})
	return result, err
}

// createBooking runs the full creation algorithm as a single atomic unit:
// validate, re-check availability under row locks, price, persist.
func (service *Service) createBooking(ctx context.Context, request BookingRequest, params creationParams) (BookingResult, error) {
	var result BookingResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		created, err := service.createBookingTx(ctx, transactionStore, request, params)
		if err != nil {
			return err
		}
		result = created
		return nil
	})
	if operationError != nil {
		return BookingResult{}, operationError
	}
	return result, nil
}

func (service *Service) createBookingTx(ctx context.Context, transactionStore Store, request BookingRequest, params creationParams) (BookingResult, error) {
	if err := request.Validate(); err != nil {
		return BookingResult{}, err
	}

	userID := request.UserID
	if userID <= 0 {
		resolvedID, err := transactionStore.GetOrCreateGuestUser(ctx, request.Customer)
		if err != nil {
			return BookingResult{}, err
		}
		userID = resolvedID
	}

	courts, equipments, err := service.loadCatalog(ctx, transactionStore, request)
	if err != nil {
		return BookingResult{}, err
	}
	if err := service.checkAvailability(ctx, transactionStore, request, 0); err != nil {
		return BookingResult{}, err
	}

	quote, err := PriceRequest(request, courts, equipments)
	if err != nil {
		return BookingResult{}, err
	}
	if err := CrossCheckAmount(request.ClientAmount, quote.Total); err != nil {
		return BookingResult{}, err
	}

	nowUnixUTC := service.nowFn()
	referenceNumber := service.referenceFn(nowUnixUTC)
	notes := buildNotes(request)

	record := &BookingRecord{}
	for _, line := range request.Courts {
		record.Reservations = append(record.Reservations, Reservation{
			UserID:          userID,
			CourtID:         line.CourtID,
			Date:            request.Date,
			Window:          line.Window,
			Status:          params.reservationStatus,
			TotalAmount:     CourtSubtotal(courts[line.CourtID], line.Window),
			ReferenceNumber: referenceNumber,
			Notes:           notes,
			AdminCreated:    request.AdminCreated,
		})
	}
	if len(record.Reservations) == 0 {
		// Equipment-only rental still needs an owning reservation row so
		// payments and rentals stay anchored.
		window := request.Equipment[0].Window
		record.Reservations = append(record.Reservations, Reservation{
			UserID:          userID,
			Date:            request.Date,
			Window:          window,
			Status:          params.reservationStatus,
			TotalAmount:     quote.Total,
			ReferenceNumber: referenceNumber,
			Notes:           notes,
			AdminCreated:    request.AdminCreated,
		})
	}
	// Only the group anchor carries the gateway reference; the unique
	// index on it dedups webhook replays while siblings share only the
	// reference number.
	record.Reservations[0].ExternalReference = params.externalReference

	record.Payment = Payment{
		Amount:        quote.Total,
		Method:        request.Method,
		Status:        params.paymentStatus,
		TransactionID: params.externalReference,
		Notes:         notes,
		Metadata:      paymentMetadata(request, quote.Total),
	}

	if len(request.Equipment) > 0 {
		rental := &EquipmentRental{Date: request.Date}
		for _, line := range request.Equipment {
			subtotal := EquipmentSubtotal(equipments[line.EquipmentID], line.Window, line.Quantity)
			rental.Items = append(rental.Items, EquipmentRentalItem{
				EquipmentID: line.EquipmentID,
				Quantity:    line.Quantity,
				Window:      line.Window,
				HourlyRate:  equipments[line.EquipmentID].HourlyRate,
				Subtotal:    subtotal,
			})
			rental.TotalAmount += subtotal
		}
		record.Rental = rental
	}

	if err := transactionStore.InsertBooking(ctx, record); err != nil {
		return BookingResult{}, err
	}

	group := BookingGroup{ReferenceNumber: referenceNumber}
	for _, reservation := range record.Reservations {
		group.ReservationIDs = append(group.ReservationIDs, reservation.ID)
	}
	return BookingResult{
		Group:        group,
		Reservations: record.Reservations,
		Payment:      record.Payment,
		Rental:       record.Rental,
		Total:        quote.Total,
	}, nil
}

// loadCatalog resolves every referenced court and equipment item, failing
// on unknown ids instead of silently pricing an empty set.
func (service *Service) loadCatalog(ctx context.Context, store Store, request BookingRequest) (map[int64]Court, map[int64]Equipment, error) {
	courts := make(map[int64]Court, len(request.Courts))
	for _, line := range request.Courts {
		if _, seen := courts[line.CourtID]; seen {
			continue
		}
		court, err := store.GetCourt(ctx, line.CourtID)
		if err != nil {
			return nil, nil, err
		}
		courts[line.CourtID] = court
	}
	equipments := make(map[int64]Equipment, len(request.Equipment))
	for _, line := range request.Equipment {
		if _, seen := equipments[line.EquipmentID]; seen {
			continue
		}
		equipment, err := store.GetEquipment(ctx, line.EquipmentID)
		if err != nil {
			return nil, nil, err
		}
		equipments[line.EquipmentID] = equipment
	}
	return courts, equipments, nil
}

// checkAvailability re-runs the court overlap and equipment stock checks.
// Inside createBookingTx it executes on the transaction store, so the
// storage layer can serialize check-then-insert.
func (service *Service) checkAvailability(ctx context.Context, store Store, request BookingRequest, excludeReservationID int64) error {
	// Same-request lines for one court conflict with each other too.
	accepted := make(map[int64][]TimeRange, len(request.Courts))
	for _, line := range request.Courts {
		free, err := service.courtSlotFree(ctx, store, line.CourtID, request.Date, line.Window, excludeReservationID)
		if err != nil {
			return err
		}
		for _, window := range accepted[line.CourtID] {
			if window.Overlaps(line.Window) {
				free = false
				break
			}
		}
		if !free {
			return fmt.Errorf("%w: court %d on %s %s-%s", ErrSlotConflict,
				line.CourtID, request.Date, line.Window.Start, line.Window.End)
		}
		accepted[line.CourtID] = append(accepted[line.CourtID], line.Window)
	}
	if len(request.Equipment) == 0 {
		return nil
	}
	windows, err := store.ListRentalWindows(ctx, request.Date)
	if err != nil {
		return err
	}
	// Same-request lines for one item stack against each other too.
	requested := make(map[int64]int, len(request.Equipment))
	for _, line := range request.Equipment {
		equipment, err := store.GetEquipment(ctx, line.EquipmentID)
		if err != nil {
			return err
		}
		reserved := requested[line.EquipmentID]
		for _, window := range windows {
			if window.EquipmentID == line.EquipmentID && window.Window.Overlaps(line.Window) {
				reserved += window.Quantity
			}
		}
		if reserved+line.Quantity > equipment.Stock {
			return fmt.Errorf("%w: equipment %d has %d of %d available", ErrInsufficientStock,
				line.EquipmentID, equipment.Stock-reserved, equipment.Stock)
		}
		requested[line.EquipmentID] += line.Quantity
	}
	return nil
}

// paymentMetadata snapshots the priced request onto the payment row, so a
// payment record stays auditable after catalog rates change.
func paymentMetadata(request BookingRequest, total AmountCentavos) map[string]string {
	type courtLine struct {
		CourtID   int64  `json:"courtId"`
		StartTime string `json:"startTime"`
		EndTime   string `json:"endTime"`
	}
	type equipmentLine struct {
		EquipmentID int64  `json:"equipmentId"`
		Quantity    int    `json:"quantity"`
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
	}
	snapshot := struct {
		UserID    int64           `json:"userId"`
		Date      string          `json:"date"`
		Courts    []courtLine     `json:"courts,omitempty"`
		Equipment []equipmentLine `json:"equipment,omitempty"`
	}{UserID: request.UserID, Date: request.Date.String()}
	for _, line := range request.Courts {
		snapshot.Courts = append(snapshot.Courts, courtLine{line.CourtID, line.Window.Start.String(), line.Window.End.String()})
	}
	for _, line := range request.Equipment {
		snapshot.Equipment = append(snapshot.Equipment, equipmentLine{line.EquipmentID, line.Quantity, line.Window.Start.String(), line.Window.End.String()})
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil
	}
	return map[string]string{
		"bookingData": string(raw),
		"amount":      strconv.FormatInt(total.Int64(), 10),
	}
}

func buildNotes(request BookingRequest) string {
	if request.UserID > 0 {
		return request.Notes
	}
	parts := make([]string, 0, 4)
	if request.Customer.Name != "" {
		parts = append(parts, "Customer: "+request.Customer.Name)
	}
	if request.Customer.Contact != "" {
		parts = append(parts, "Contact: "+request.Customer.Contact)
	}
	if request.Customer.Email != "" {
		parts = append(parts, "Email: "+request.Customer.Email)
	}
	if request.Notes != "" {
		parts = append(parts, request.Notes)
	}
	return strings.Join(parts, " | ")
}

// CancelReservation moves a Pending or Confirmed reservation to Cancelled,
// freeing its slot for future bookings.
func (service *Service) CancelReservation(ctx context.Context, reservationID int64) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		reservation, err := transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		switch reservation.Status {
		case ReservationStatusPending, ReservationStatusConfirmed:
		default:
			return fmt.Errorf("%w: cannot cancel a %s reservation", ErrReservationClosed, reservation.Status)
		}
		return transactionStore.UpdateReservationStatus(ctx, reservationID, reservation.Status, ReservationStatusCancelled)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCancel,
		Error:     operationError,
	})
	return operationError
}

// ExpirePendingReservations cancels gateway-pending reservations whose
// payment never completed within the configured window, releasing their
// slots. Admin cash bookings are Confirmed on creation and never swept.
func (service *Service) ExpirePendingReservations(ctx context.Context, olderThanUnixUTC int64) (int, error) {
	expired := 0
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		pending, err := transactionStore.ListExpiredPending(ctx, olderThanUnixUTC)
		if err != nil {
			return err
		}
		for _, reservation := range pending {
			if err := transactionStore.UpdateReservationStatus(ctx, reservation.ID, ReservationStatusPending, ReservationStatusCancelled); err != nil {
				return err
			}
			// Sibling reservations share one payment row anchored to the
			// group's first reservation; the others have none to update.
			if err := transactionStore.UpdatePaymentStatus(ctx, reservation.ID, PaymentStatusPending, PaymentStatusCancelled); err != nil && !errors.Is(err, ErrReservationNotFound) {
				return err
			}
			expired++
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationExpireSweep,
		Error:     operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	return expired, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
