package booking

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the booking service.
var (
	ErrInvalidTimeFormat     = errors.New("invalid time format")
	ErrInvalidDateFormat     = errors.New("invalid date format")
	ErrInvalidTimeRange      = errors.New("invalid time range")
	ErrValidation            = errors.New("invalid booking request")
	ErrSlotConflict          = errors.New("court slot already reserved")
	ErrInsufficientStock     = errors.New("insufficient equipment stock")
	ErrAmountMismatch        = errors.New("amount mismatch")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrDuplicateEvent        = errors.New("event already processed")
	ErrCourtNotFound         = errors.New("court not found")
	ErrEquipmentNotFound     = errors.New("equipment not found")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrReservationClosed     = errors.New("reservation closed")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrInvalidServiceConfig  = errors.New("invalid service config")
	ErrMalformedEventPayload = errors.New("malformed event payload")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
