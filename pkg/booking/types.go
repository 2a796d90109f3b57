package booking

import (
	"context"
	"fmt"
	"strings"
)

// AmountCentavos is an integer peso amount in centavos.
type AmountCentavos int64

// Int64 returns the raw centavo value.
func (amount AmountCentavos) Int64() int64 {
	return int64(amount)
}

// NewAmountCentavos validates a strictly positive amount.
func NewAmountCentavos(raw int64) (AmountCentavos, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return AmountCentavos(raw), nil
}

// ReservationStatus defines the reservation lifecycle.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "Pending"
	ReservationStatusConfirmed ReservationStatus = "Confirmed"
	ReservationStatusCancelled ReservationStatus = "Cancelled"
	ReservationStatusCompleted ReservationStatus = "Completed"
)

// ParseReservationStatus validates a stored status string.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch ReservationStatus(raw) {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusCancelled, ReservationStatusCompleted:
		return ReservationStatus(raw), nil
	}
	return "", fmt.Errorf("%w: reservation status %q", ErrInvalidStatus, raw)
}

// String returns the stored form.
func (status ReservationStatus) String() string {
	return string(status)
}

// BlocksSlot reports whether a reservation in this status keeps its
// court/time window occupied.
func (status ReservationStatus) BlocksSlot() bool {
	return status != ReservationStatusCancelled
}

// PaymentStatus defines the payment lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
	PaymentStatusCancelled PaymentStatus = "Cancelled"
)

// String returns the stored form.
func (status PaymentStatus) String() string {
	return string(status)
}

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentMethodGCash         PaymentMethod = "GCash"
	PaymentMethodMaya          PaymentMethod = "Maya"
	PaymentMethodGrabPay       PaymentMethod = "GrabPay"
	PaymentMethodOnlineBanking PaymentMethod = "Online Banking"
	PaymentMethodCash          PaymentMethod = "Cash"
	PaymentMethodQRPh          PaymentMethod = "QR Ph"
)

// ParsePaymentMethod validates a tender type string.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch PaymentMethod(raw) {
	case PaymentMethodGCash, PaymentMethodMaya, PaymentMethodGrabPay,
		PaymentMethodOnlineBanking, PaymentMethodCash, PaymentMethodQRPh:
		return PaymentMethod(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, raw)
}

// String returns the stored form.
func (method PaymentMethod) String() string {
	return string(method)
}

// CourtStatus is the admin-managed court lifecycle.
type CourtStatus string

const (
	CourtStatusAvailable   CourtStatus = "Available"
	CourtStatusMaintenance CourtStatus = "Maintenance"
	CourtStatusUnavailable CourtStatus = "Unavailable"
)

// Court is a bookable playing court.
type Court struct {
	ID         int64
	Name       string
	HourlyRate AmountCentavos
	Status     CourtStatus
}

// Equipment is a rentable inventory item. Stock is a ceiling; availability
// is derived from overlapping active rentals, never decremented.
type Equipment struct {
	ID         int64
	Name       string
	Stock      int
	HourlyRate AmountCentavos
	Status     string
}

// Reservation is one court booked for one contiguous window on one date.
type Reservation struct {
	ID                int64
	UserID            int64
	CourtID           int64
	Date              DateOnly
	Window            TimeRange
	Status            ReservationStatus
	TotalAmount       AmountCentavos
	ReferenceNumber   string
	ExternalReference string
	Notes             string
	AdminCreated      bool
}

// Payment records the tender for one booking group.
type Payment struct {
	ID            int64
	ReservationID int64
	Amount        AmountCentavos
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string
	Notes         string
	Metadata      map[string]string
}

// EquipmentRental groups the equipment lines of one reservation.
type EquipmentRental struct {
	ID            int64
	ReservationID int64
	Date          DateOnly
	TotalAmount   AmountCentavos
	Items         []EquipmentRentalItem
}

// EquipmentRentalItem is one rented equipment line with the hourly rate
// frozen at booking time.
type EquipmentRentalItem struct {
	ID          int64
	RentalID    int64
	EquipmentID int64
	Quantity    int
	Window      TimeRange
	HourlyRate  AmountCentavos
	Subtotal    AmountCentavos
}

// GuestContact identifies a walk-in or gateway customer without an account.
type GuestContact struct {
	Name    string
	Contact string
	Email   string
}

// CourtLine is one requested court/time window.
type CourtLine struct {
	CourtID int64
	Window  TimeRange
}

// EquipmentLine is one requested equipment rental window.
type EquipmentLine struct {
	EquipmentID int64
	Quantity    int
	Window      TimeRange
}

// BookingRequest is the input to the reservation orchestrator. UserID zero
// means a guest booking resolved through Customer contact info.
type BookingRequest struct {
	UserID       int64
	Customer     GuestContact
	Date         DateOnly
	Courts       []CourtLine
	Equipment    []EquipmentLine
	Method       PaymentMethod
	ClientAmount AmountCentavos
	Notes        string
	AdminCreated bool
}

// BookingGroup is the projection of sibling reservations created from one
// checkout.
type BookingGroup struct {
	ReferenceNumber string
	ReservationIDs  []int64
}

// BookingResult is the durable outcome of one creation.
type BookingResult struct {
	Group        BookingGroup
	Reservations []Reservation
	Payment      Payment
	Rental       *EquipmentRental
	Total        AmountCentavos
}

// CheckoutQuote is the priced, validated view of a request before any row
// is persisted. Used for self-service gateway checkout.
type CheckoutQuote struct {
	Total     AmountCentavos
	LineItems []LineItem
}

// EquipmentAvailability is the derived stock view for one item and window.
type EquipmentAvailability struct {
	EquipmentID int64
	Name        string
	TotalStock  int
	Reserved    int
	Available   int
	Status      string
}

// DuplicateCheck is the advisory pre-submission guard result.
type DuplicateCheck struct {
	IsDuplicate bool
	Message     string
}

// ReservationWindow is a stored reservation row projected for overlap
// checks.
type ReservationWindow struct {
	ReservationID int64
	UserID        int64
	Window        TimeRange
	Status        ReservationStatus
}

// RentalWindow is a stored rental item row projected for stock checks.
type RentalWindow struct {
	EquipmentID int64
	Quantity    int
	Window      TimeRange
}

// BookingRecord bundles the rows persisted atomically for one checkout.
type BookingRecord struct {
	Reservations []Reservation
	Payment      Payment
	Rental       *EquipmentRental
}

// Store is the persistence contract used by Service. Implementations must
// make WithTx transactional: overlap and stock checks run inside the same
// transaction as the insert, and a unique index on the external reference
// backstops webhook deduplication.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetCourt(ctx context.Context, courtID int64) (Court, error)
	GetEquipment(ctx context.Context, equipmentID int64) (Equipment, error)
	ListActiveEquipment(ctx context.Context) ([]Equipment, error)
	GetOrCreateGuestUser(ctx context.Context, contact GuestContact) (int64, error)
	ListCourtReservations(ctx context.Context, courtID int64, date DateOnly, excludeReservationID int64) ([]ReservationWindow, error)
	ListRentalWindows(ctx context.Context, date DateOnly) ([]RentalWindow, error)
	InsertBooking(ctx context.Context, record *BookingRecord) error
	FindByExternalReference(ctx context.Context, externalReference string) ([]Reservation, error)
	FindByReferenceNumber(ctx context.Context, referenceNumber string) ([]Reservation, error)
	GetReservation(ctx context.Context, reservationID int64) (Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID int64, from, to ReservationStatus) error
	UpdatePaymentStatus(ctx context.Context, reservationID int64, from, to PaymentStatus) error
	ListExpiredPending(ctx context.Context, createdBeforeUnixUTC int64) ([]Reservation, error)
}

// Validate checks request shape ahead of any storage work.
func (request BookingRequest) Validate() error {
	if len(request.Courts) == 0 && len(request.Equipment) == 0 {
		return fmt.Errorf("%w: no court or equipment lines", ErrValidation)
	}
	if request.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if _, err := ParsePaymentMethod(request.Method.String()); err != nil {
		return err
	}
	for _, line := range request.Courts {
		if line.CourtID <= 0 {
			return fmt.Errorf("%w: court id is required", ErrValidation)
		}
		if _, err := NewTimeRange(line.Window.Start, line.Window.End); err != nil {
			return err
		}
	}
	for _, line := range request.Equipment {
		if line.EquipmentID <= 0 {
			return fmt.Errorf("%w: equipment id is required", ErrValidation)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", ErrInvalidQuantity)
		}
		if _, err := NewTimeRange(line.Window.Start, line.Window.End); err != nil {
			return err
		}
	}
	if request.UserID <= 0 && strings.TrimSpace(request.Customer.Name) == "" {
		return fmt.Errorf("%w: guest bookings require a customer name", ErrValidation)
	}
	return nil
}
