package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// PaymentEventKind tags the decoded gateway event variants so reconciler
// dispatch is an exhaustive switch rather than string comparisons.
type PaymentEventKind string

const (
	EventCheckoutSessionPaid PaymentEventKind = "checkout_session.payment.paid"
	EventPaymentPaid         PaymentEventKind = "payment.paid"
	EventPaymentFailed       PaymentEventKind = "payment.failed"
	EventUnknown             PaymentEventKind = "unknown"
)

// PaymentEvent is a verified, decoded gateway webhook event. For paid
// events Booking carries the bookingData captured at checkout time, since
// no reservation exists yet for self-service flows.
type PaymentEvent struct {
	Kind              PaymentEventKind
	ExternalReference string
	Amount            AmountCentavos
	Method            PaymentMethod
	Booking           *BookingRequest
	FailureReason     string
}

// ReconcileOutcome describes what a webhook delivery did.
type ReconcileOutcome string

const (
	OutcomeCreated   ReconcileOutcome = "created"
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	OutcomeCancelled ReconcileOutcome = "cancelled"
	OutcomeConfirmed ReconcileOutcome = "confirmed"
	OutcomeIgnored   ReconcileOutcome = "ignored"
)

// ReconcileResult is the reconciler's report back to the webhook endpoint.
type ReconcileResult struct {
	Outcome ReconcileOutcome
	Booking *BookingResult
}

// ReconcileEvent translates a verified gateway event into durable state.
// Paid events materialize the reservation from checkout metadata; the
// external-reference dedup check and the creation run in one transaction,
// with the unique index as the backstop against concurrent duplicate
// deliveries. Duplicate replays are success, not errors.
func (service *Service) ReconcileEvent(ctx context.Context, event PaymentEvent) (ReconcileResult, error) {
	var result ReconcileResult
	var err error
	switch event.Kind {
	case EventCheckoutSessionPaid, EventPaymentPaid:
		result, err = service.reconcilePaid(ctx, event)
	case EventPaymentFailed:
		result, err = service.reconcileFailed(ctx, event)
	case EventUnknown:
		result = ReconcileResult{Outcome: OutcomeIgnored}
	default:
		result = ReconcileResult{Outcome: OutcomeIgnored}
	}
	service.logOperation(ctx, OperationLog{
		Operation:         operationReconcile,
		ExternalReference: event.ExternalReference,
		Amount:            event.Amount,
		Status:            string(result.Outcome),
		Error:             err,
	})
	return result, err
}

func (service *Service) reconcilePaid(ctx context.Context, event PaymentEvent) (ReconcileResult, error) {
	if strings.TrimSpace(event.ExternalReference) == "" {
		return ReconcileResult{}, fmt.Errorf("%w: missing external reference", ErrMalformedEventPayload)
	}

	var result ReconcileResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		existing, err := transactionStore.FindByExternalReference(ctx, event.ExternalReference)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			// Admin QR flow: rows were created Pending at QR issuance, the
			// paid event promotes the whole booking group. Replays of an
			// already-confirmed group report duplicate.
			group, err := transactionStore.FindByReferenceNumber(ctx, existing[0].ReferenceNumber)
			if err != nil {
				return err
			}
			promoted := false
			for _, reservation := range group {
				if reservation.Status != ReservationStatusPending {
					continue
				}
				if err := transactionStore.UpdateReservationStatus(ctx, reservation.ID, ReservationStatusPending, ReservationStatusConfirmed); err != nil {
					return err
				}
				if err := transactionStore.UpdatePaymentStatus(ctx, reservation.ID, PaymentStatusPending, PaymentStatusCompleted); err != nil && !errors.Is(err, ErrReservationNotFound) {
					return err
				}
				promoted = true
			}
			if promoted {
				view := groupResult(group, ReservationStatusConfirmed, event.Method, PaymentStatusCompleted)
				result = ReconcileResult{Outcome: OutcomeConfirmed, Booking: &view}
			} else {
				result = ReconcileResult{Outcome: OutcomeDuplicate}
			}
			return nil
		}

		if event.Booking == nil {
			return fmt.Errorf("%w: paid event carries no booking metadata", ErrMalformedEventPayload)
		}
		request := *event.Booking
		if event.Method != "" {
			request.Method = event.Method
		}
		if event.Amount > 0 {
			request.ClientAmount = event.Amount
		}
		created, err := service.createBookingTx(ctx, transactionStore, request, creationParams{
			reservationStatus: ReservationStatusConfirmed,
			paymentStatus:     PaymentStatusCompleted,
			externalReference: event.ExternalReference,
		})
		if err != nil {
			// A concurrent delivery may have won the insert race; the
			// unique index turns that into a duplicate-event success.
			if errors.Is(err, ErrDuplicateEvent) {
				result = ReconcileResult{Outcome: OutcomeDuplicate}
				return nil
			}
			return err
		}
		result = ReconcileResult{Outcome: OutcomeCreated, Booking: &created}
		return nil
	})
	if operationError != nil {
		if errors.Is(operationError, ErrDuplicateEvent) {
			return ReconcileResult{Outcome: OutcomeDuplicate}, nil
		}
		return ReconcileResult{}, operationError
	}
	return result, nil
}

func (service *Service) reconcileFailed(ctx context.Context, event PaymentEvent) (ReconcileResult, error) {
	if strings.TrimSpace(event.ExternalReference) == "" {
		return ReconcileResult{}, fmt.Errorf("%w: missing external reference", ErrMalformedEventPayload)
	}
	var result ReconcileResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		existing, err := transactionStore.FindByExternalReference(ctx, event.ExternalReference)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			// Self-service pre-payment: nothing was created, nothing to
			// roll back.
			result = ReconcileResult{Outcome: OutcomeIgnored}
			return nil
		}
		group, err := transactionStore.FindByReferenceNumber(ctx, existing[0].ReferenceNumber)
		if err != nil {
			return err
		}
		cancelled := false
		for _, reservation := range group {
			if reservation.Status != ReservationStatusPending {
				continue
			}
			if err := transactionStore.UpdateReservationStatus(ctx, reservation.ID, ReservationStatusPending, ReservationStatusCancelled); err != nil {
				return err
			}
			if err := transactionStore.UpdatePaymentStatus(ctx, reservation.ID, PaymentStatusPending, PaymentStatusFailed); err != nil && !errors.Is(err, ErrReservationNotFound) {
				return err
			}
			cancelled = true
		}
		if cancelled {
			view := groupResult(group, ReservationStatusCancelled, event.Method, PaymentStatusFailed)
			result = ReconcileResult{Outcome: OutcomeCancelled, Booking: &view}
		} else {
			result = ReconcileResult{Outcome: OutcomeIgnored}
		}
		return nil
	})
	if operationError != nil {
		return ReconcileResult{}, operationError
	}
	return result, nil
}

// groupResult rebuilds a BookingResult for a reservation group whose rows
// were just transitioned, so the endpoint can notify without re-reading.
func groupResult(group []Reservation, status ReservationStatus, method PaymentMethod, paymentStatus PaymentStatus) BookingResult {
	if method == "" {
		method = PaymentMethodQRPh
	}
	result := BookingResult{
		Group: BookingGroup{ReferenceNumber: group[0].ReferenceNumber},
	}
	for _, reservation := range group {
		reservation.Status = status
		result.Group.ReservationIDs = append(result.Group.ReservationIDs, reservation.ID)
		result.Reservations = append(result.Reservations, reservation)
		result.Total += reservation.TotalAmount
	}
	result.Payment = Payment{
		ReservationID: group[0].ID,
		Amount:        result.Total,
		Method:        method,
		Status:        paymentStatus,
	}
	return result
}
