package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smashvillage/courtbook/pkg/booking"
)

const (
	constraintExternalReference = "uniq_reservations_external_ref"
	pgUniqueViolationCode       = "23505"
	sqliteConstraintCode        = 19
	sqliteUniqueConstraintCode  = 2067
	equipmentStatusActive       = "Active"
	dialectPostgres             = "postgres"

	errorOperationStore    = "store"
	errorSubjectCourt      = "court"
	errorSubjectEquipment  = "equipment"
	errorSubjectUser       = "user"
	errorSubjectBooking    = "booking"
	errorSubjectRental     = "rental"
	errorSubjectPayment    = "payment"
	errorSubjectWindow     = "window"
	errorCodeCreate        = "create"
	errorCodeDuplicate     = "duplicate"
	errorCodeGet           = "get"
	errorCodeInvalid       = "invalid"
	errorCodeList          = "list"
	errorCodeLookup        = "lookup"
	errorCodeUpdateStatus  = "update_status"
	errorCodeExpiredSweep  = "expired_sweep"
)

// Store implements booking.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction, so overlap and stock checks run
// in the same unit as the insert they guard.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetCourt(ctx context.Context, courtID int64) (booking.Court, error) {
	var model Court
	err := store.db.WithContext(ctx).Take(&model, "id = ?", courtID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.Court{}, wrapStoreError(errorSubjectCourt, errorCodeGet, booking.ErrCourtNotFound)
	}
	if err != nil {
		return booking.Court{}, wrapStoreError(errorSubjectCourt, errorCodeGet, err)
	}
	return booking.Court{
		ID:         model.ID,
		Name:       model.Name,
		HourlyRate: booking.AmountCentavos(model.HourlyRate),
		Status:     booking.CourtStatus(model.Status),
	}, nil
}

func (store *Store) GetEquipment(ctx context.Context, equipmentID int64) (booking.Equipment, error) {
	var model Equipment
	err := store.db.WithContext(ctx).Take(&model, "id = ?", equipmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.Equipment{}, wrapStoreError(errorSubjectEquipment, errorCodeGet, booking.ErrEquipmentNotFound)
	}
	if err != nil {
		return booking.Equipment{}, wrapStoreError(errorSubjectEquipment, errorCodeGet, err)
	}
	return mapEquipment(model), nil
}

func (store *Store) ListActiveEquipment(ctx context.Context) ([]booking.Equipment, error) {
	var models []Equipment
	err := store.db.WithContext(ctx).
		Where("status = ?", equipmentStatusActive).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEquipment, errorCodeList, err)
	}
	items := make([]booking.Equipment, 0, len(models))
	for _, model := range models {
		items = append(items, mapEquipment(model))
	}
	return items, nil
}

func (store *Store) GetOrCreateGuestUser(ctx context.Context, contact booking.GuestContact) (int64, error) {
	conditions := User{IsGuest: true, Name: strings.TrimSpace(contact.Name)}
	if strings.TrimSpace(contact.Contact) != "" {
		conditions.Contact = strings.TrimSpace(contact.Contact)
	}
	if strings.TrimSpace(contact.Email) != "" {
		conditions.Email = strings.TrimSpace(contact.Email)
	}
	var model User
	err := store.db.WithContext(ctx).
		Where(&conditions).
		FirstOrCreate(&model, conditions).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectUser, errorCodeLookup, err)
	}
	return model.ID, nil
}

// ListCourtReservations loads the non-cancelled rows for one court and
// date. Inside a transaction on PostgreSQL the rows are locked, so a
// concurrent booking for the same slot serializes behind this check.
func (store *Store) ListCourtReservations(ctx context.Context, courtID int64, date booking.DateOnly, excludeReservationID int64) ([]booking.ReservationWindow, error) {
	query := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("court_id = ? AND date = ?", courtID, date.String()).
		Where("status <> ?", booking.ReservationStatusCancelled.String())
	if excludeReservationID > 0 {
		query = query.Where("id <> ?", excludeReservationID)
	}
	if store.db.Dialector.Name() == dialectPostgres {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var models []Reservation
	if err := query.Find(&models).Error; err != nil {
		return nil, wrapStoreError(errorSubjectWindow, errorCodeList, err)
	}
	windows := make([]booking.ReservationWindow, 0, len(models))
	for _, model := range models {
		status, err := booking.ParseReservationStatus(model.Status)
		if err != nil {
			return nil, wrapStoreError(errorSubjectWindow, errorCodeInvalid, err)
		}
		windows = append(windows, booking.ReservationWindow{
			ReservationID: model.ID,
			UserID:        model.UserID,
			Window: booking.TimeRange{
				Start: booking.TimeOfDay(model.StartMinutes),
				End:   booking.TimeOfDay(model.EndMinutes),
			},
			Status: status,
		})
	}
	return windows, nil
}

// ListRentalWindows returns every rental line for a date whose parent
// reservation is not cancelled, in one pass for the stock aggregation.
func (store *Store) ListRentalWindows(ctx context.Context, date booking.DateOnly) ([]booking.RentalWindow, error) {
	type row struct {
		EquipmentID  int64
		Quantity     int
		StartMinutes int
		EndMinutes   int
	}
	var rows []row
	err := store.db.WithContext(ctx).
		Table("equipment_rental_items").
		Select("equipment_rental_items.equipment_id, equipment_rental_items.quantity, equipment_rental_items.start_minutes, equipment_rental_items.end_minutes").
		Joins("JOIN equipment_rentals ON equipment_rentals.id = equipment_rental_items.rental_id").
		Joins("JOIN reservations ON reservations.id = equipment_rentals.reservation_id").
		Where("equipment_rentals.date = ?", date.String()).
		Where("reservations.status <> ?", booking.ReservationStatusCancelled.String()).
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectRental, errorCodeList, err)
	}
	windows := make([]booking.RentalWindow, 0, len(rows))
	for _, item := range rows {
		windows = append(windows, booking.RentalWindow{
			EquipmentID: item.EquipmentID,
			Quantity:    item.Quantity,
			Window: booking.TimeRange{
				Start: booking.TimeOfDay(item.StartMinutes),
				End:   booking.TimeOfDay(item.EndMinutes),
			},
		})
	}
	return windows, nil
}

// InsertBooking persists one booking group atomically: reservations, the
// payment anchored to the first reservation, and the rental with its
// items. A unique-index violation on the external reference surfaces as
// ErrDuplicateEvent so webhook replays reconcile as no-ops.
func (store *Store) InsertBooking(ctx context.Context, record *booking.BookingRecord) error {
	db := store.db.WithContext(ctx)
	for index := range record.Reservations {
		model := mapReservationToModel(record.Reservations[index])
		if err := db.Create(&model).Error; err != nil {
			if isExternalReferenceConflict(err) {
				return wrapStoreError(errorSubjectBooking, errorCodeDuplicate, booking.ErrDuplicateEvent)
			}
			return wrapStoreError(errorSubjectBooking, errorCodeCreate, err)
		}
		record.Reservations[index].ID = model.ID
	}

	anchorID := record.Reservations[0].ID
	paymentModel := Payment{
		ReservationID: anchorID,
		Amount:        record.Payment.Amount.Int64(),
		Method:        record.Payment.Method.String(),
		Status:        record.Payment.Status.String(),
		TransactionID: record.Payment.TransactionID,
		Notes:         record.Payment.Notes,
	}
	if len(record.Payment.Metadata) > 0 {
		raw, err := json.Marshal(record.Payment.Metadata)
		if err != nil {
			return wrapStoreError(errorSubjectPayment, errorCodeCreate, err)
		}
		paymentModel.Metadata = datatypes.JSON(raw)
	}
	if err := db.Create(&paymentModel).Error; err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeCreate, err)
	}
	record.Payment.ID = paymentModel.ID
	record.Payment.ReservationID = anchorID

	if record.Rental != nil {
		rentalModel := EquipmentRental{
			ReservationID: anchorID,
			Date:          record.Rental.Date.String(),
			TotalAmount:   record.Rental.TotalAmount.Int64(),
		}
		if err := db.Create(&rentalModel).Error; err != nil {
			return wrapStoreError(errorSubjectRental, errorCodeCreate, err)
		}
		record.Rental.ID = rentalModel.ID
		record.Rental.ReservationID = anchorID
		for index := range record.Rental.Items {
			item := &record.Rental.Items[index]
			itemModel := EquipmentRentalItem{
				RentalID:     rentalModel.ID,
				EquipmentID:  item.EquipmentID,
				Quantity:     item.Quantity,
				StartMinutes: item.Window.Start.Minutes(),
				EndMinutes:   item.Window.End.Minutes(),
				HourlyRate:   item.HourlyRate.Int64(),
				Subtotal:     item.Subtotal.Int64(),
			}
			if err := db.Create(&itemModel).Error; err != nil {
				return wrapStoreError(errorSubjectRental, errorCodeCreate, err)
			}
			item.ID = itemModel.ID
			item.RentalID = rentalModel.ID
		}
	}
	return nil
}

func (store *Store) FindByExternalReference(ctx context.Context, externalReference string) ([]booking.Reservation, error) {
	var models []Reservation
	err := store.db.WithContext(ctx).
		Where("external_reference = ?", externalReference).
		Find(&models).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeLookup, err)
	}
	reservations := make([]booking.Reservation, 0, len(models))
	for _, model := range models {
		mapped, err := mapReservation(model)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		reservations = append(reservations, mapped)
	}
	return reservations, nil
}

func (store *Store) FindByReferenceNumber(ctx context.Context, referenceNumber string) ([]booking.Reservation, error) {
	var models []Reservation
	err := store.db.WithContext(ctx).
		Where("reference_number = ?", referenceNumber).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeLookup, err)
	}
	reservations := make([]booking.Reservation, 0, len(models))
	for _, model := range models {
		mapped, err := mapReservation(model)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		reservations = append(reservations, mapped)
	}
	return reservations, nil
}

func (store *Store) GetReservation(ctx context.Context, reservationID int64) (booking.Reservation, error) {
	var model Reservation
	err := store.db.WithContext(ctx).Take(&model, "id = ?", reservationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.Reservation{}, wrapStoreError(errorSubjectBooking, errorCodeGet, booking.ErrReservationNotFound)
	}
	if err != nil {
		return booking.Reservation{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	mapped, err := mapReservation(model)
	if err != nil {
		return booking.Reservation{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return mapped, nil
}

func (store *Store) UpdateReservationStatus(ctx context.Context, reservationID int64, from, to booking.ReservationStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ? AND status = ?", reservationID, from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, booking.ErrReservationClosed)
	}
	return nil
}

func (store *Store) UpdatePaymentStatus(ctx context.Context, reservationID int64, from, to booking.PaymentStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Payment{}).
		Where("reservation_id = ? AND status = ?", reservationID, from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectPayment, errorCodeUpdateStatus, booking.ErrReservationNotFound)
	}
	return nil
}

func (store *Store) ListExpiredPending(ctx context.Context, createdBeforeUnixUTC int64) ([]booking.Reservation, error) {
	cutoff := time.Unix(createdBeforeUnixUTC, 0).UTC()
	var models []Reservation
	err := store.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", booking.ReservationStatusPending.String(), cutoff).
		Find(&models).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeExpiredSweep, err)
	}
	reservations := make([]booking.Reservation, 0, len(models))
	for _, model := range models {
		mapped, err := mapReservation(model)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		reservations = append(reservations, mapped)
	}
	return reservations, nil
}

func mapEquipment(model Equipment) booking.Equipment {
	return booking.Equipment{
		ID:         model.ID,
		Name:       model.Name,
		Stock:      model.Stock,
		HourlyRate: booking.AmountCentavos(model.HourlyRate),
		Status:     model.Status,
	}
}

func mapReservation(model Reservation) (booking.Reservation, error) {
	status, err := booking.ParseReservationStatus(model.Status)
	if err != nil {
		return booking.Reservation{}, err
	}
	date, err := booking.ParseDateOnly(model.Date)
	if err != nil {
		return booking.Reservation{}, err
	}
	var courtID int64
	if model.CourtID != nil {
		courtID = *model.CourtID
	}
	externalReference := ""
	if model.ExternalReference != nil {
		externalReference = *model.ExternalReference
	}
	return booking.Reservation{
		ID:      model.ID,
		UserID:  model.UserID,
		CourtID: courtID,
		Date:    date,
		Window: booking.TimeRange{
			Start: booking.TimeOfDay(model.StartMinutes),
			End:   booking.TimeOfDay(model.EndMinutes),
		},
		Status:            status,
		TotalAmount:       booking.AmountCentavos(model.TotalAmount),
		ReferenceNumber:   model.ReferenceNumber,
		ExternalReference: externalReference,
		Notes:             model.Notes,
		AdminCreated:      model.IsAdminCreated,
	}, nil
}

func mapReservationToModel(reservation booking.Reservation) Reservation {
	model := Reservation{
		UserID:          reservation.UserID,
		Date:            reservation.Date.String(),
		StartMinutes:    reservation.Window.Start.Minutes(),
		EndMinutes:      reservation.Window.End.Minutes(),
		Status:          reservation.Status.String(),
		TotalAmount:     reservation.TotalAmount.Int64(),
		ReferenceNumber: reservation.ReferenceNumber,
		Notes:           reservation.Notes,
		IsAdminCreated:  reservation.AdminCreated,
	}
	if reservation.CourtID > 0 {
		courtID := reservation.CourtID
		model.CourtID = &courtID
	}
	if reservation.ExternalReference != "" {
		externalReference := reservation.ExternalReference
		model.ExternalReference = &externalReference
	}
	return model
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

func isExternalReferenceConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintExternalReference
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		// Plain code 19 also covers NOT NULL and CHECK violations, so
		// require a UNIQUE failure on the indexed column.
		if sqliteErr.Code()&0xFF != sqliteConstraintCode && sqliteErr.Code() != sqliteUniqueConstraintCode {
			return false
		}
		message := sqliteErr.Error()
		return strings.Contains(message, "UNIQUE constraint failed") &&
			strings.Contains(message, "external_reference")
	}
	return false
}
