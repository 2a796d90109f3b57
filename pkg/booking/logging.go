package booking

import (
	"context"

	"go.uber.org/zap"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing booking operation.
type OperationLog struct {
	Operation         string
	UserID            int64
	ReferenceNumber   string
	ExternalReference string
	Amount            AmountCentavos
	Status            string
	Error             error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithReferenceGenerator overrides reference-number generation, mainly for tests.
func WithReferenceGenerator(generate func(nowUnixUTC int64) string) ServiceOption {
	return func(service *Service) {
		service.referenceFn = generate
	}
}

// ZapOperationLogger adapts a zap logger to the OperationLogger contract.
type ZapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger wraps a zap logger.
func NewZapOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	return &ZapOperationLogger{logger: logger}
}

// LogOperation emits one structured record per operation.
func (zapLogger *ZapOperationLogger) LogOperation(_ context.Context, entry OperationLog) {
	if zapLogger.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.Int64("user_id", entry.UserID),
		zap.String("reference_number", entry.ReferenceNumber),
		zap.Int64("amount_centavos", entry.Amount.Int64()),
	}
	if entry.ExternalReference != "" {
		fields = append(fields, zap.String("external_reference", entry.ExternalReference))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		zapLogger.logger.Warn("booking operation failed", fields...)
		return
	}
	zapLogger.logger.Info("booking operation", fields...)
}
