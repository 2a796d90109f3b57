package booking

const (
	operationCheckout    = "checkout"
	operationCashCreate  = "cash_create"
	operationQRCreate    = "qr_create"
	operationReconcile   = "reconcile"
	operationCancel      = "cancel"
	operationExpireSweep = "expire_sweep"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	referencePrefix = "REF"
)
