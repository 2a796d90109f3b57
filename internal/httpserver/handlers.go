package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smashvillage/courtbook/internal/notify"
	"github.com/smashvillage/courtbook/internal/paymongo"
	"github.com/smashvillage/courtbook/pkg/booking"
)

type guestPayload struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
}

type courtLinePayload struct {
	CourtID   int64  `json:"courtId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type equipmentLinePayload struct {
	EquipmentID int64  `json:"equipmentId"`
	Quantity    int    `json:"quantity"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
}

type bookingPayload struct {
	Customer       guestPayload           `json:"customer"`
	Date           string                 `json:"date"`
	Courts         []courtLinePayload     `json:"courts"`
	Equipment      []equipmentLinePayload `json:"equipment"`
	PaymentMethod  string                 `json:"paymentMethod"`
	AmountCentavos int64                  `json:"amountCentavos"`
	Notes          string                 `json:"notes"`
}

type qrBookingPayload struct {
	bookingPayload
	MobileNumber string `json:"mobileNumber"`
}

type duplicateCheckPayload struct {
	CourtID   int64  `json:"courtId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func (payload bookingPayload) toRequest(userID int64) (booking.BookingRequest, error) {
	date, err := booking.ParseDateOnly(payload.Date)
	if err != nil {
		return booking.BookingRequest{}, err
	}
	request := booking.BookingRequest{
		UserID: userID,
		Customer: booking.GuestContact{
			Name:    payload.Customer.Name,
			Contact: payload.Customer.Contact,
			Email:   payload.Customer.Email,
		},
		Date:         date,
		ClientAmount: booking.AmountCentavos(payload.AmountCentavos),
		Notes:        payload.Notes,
	}
	if payload.PaymentMethod != "" {
		method, err := booking.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			return booking.BookingRequest{}, err
		}
		request.Method = method
	}
	for _, line := range payload.Courts {
		window, err := parseWindow(line.StartTime, line.EndTime)
		if err != nil {
			return booking.BookingRequest{}, err
		}
		request.Courts = append(request.Courts, booking.CourtLine{CourtID: line.CourtID, Window: window})
	}
	for _, line := range payload.Equipment {
		window, err := parseWindow(line.StartTime, line.EndTime)
		if err != nil {
			return booking.BookingRequest{}, err
		}
		request.Equipment = append(request.Equipment, booking.EquipmentLine{
			EquipmentID: line.EquipmentID,
			Quantity:    line.Quantity,
			Window:      window,
		})
	}
	return request, nil
}

func parseWindow(startRaw string, endRaw string) (booking.TimeRange, error) {
	start, err := booking.ParseTimeOfDay(startRaw)
	if err != nil {
		return booking.TimeRange{}, err
	}
	end, err := booking.ParseTimeOfDay(endRaw)
	if err != nil {
		return booking.TimeRange{}, err
	}
	return booking.NewTimeRange(start, end)
}

func (server *Server) handleCourtAvailability(ctx *gin.Context) {
	courtID, err := strconv.ParseInt(ctx.Param("courtId"), 10, 64)
	if err != nil || courtID <= 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_court", "court id must be a positive integer"))
		return
	}
	date, err := booking.ParseDateOnly(ctx.Query("date"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_date", "date query parameter is required as YYYY-MM-DD"))
		return
	}

	busy, err := server.service.CourtBusyRanges(ctx.Request.Context(), courtID, date)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ranges := make([]gin.H, 0, len(busy))
	for _, window := range busy {
		ranges = append(ranges, gin.H{"startTime": window.Start.String(), "endTime": window.End.String()})
	}
	response := gin.H{
		"courtId":    courtID,
		"date":       date.String(),
		"busyRanges": ranges,
	}

	startRaw, endRaw := ctx.Query("startTime"), ctx.Query("endTime")
	if startRaw != "" && endRaw != "" {
		window, err := parseWindow(startRaw, endRaw)
		if err != nil {
			server.respondDomainError(ctx, err)
			return
		}
		free, err := server.service.IsCourtSlotFree(ctx.Request.Context(), courtID, date, window, 0)
		if err != nil {
			server.respondDomainError(ctx, err)
			return
		}
		response["slotFree"] = free
	}
	ctx.JSON(http.StatusOK, response)
}

func (server *Server) handleEquipmentAvailability(ctx *gin.Context) {
	date, err := booking.ParseDateOnly(ctx.Query("date"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_date", "date query parameter is required as YYYY-MM-DD"))
		return
	}
	window, err := parseWindow(ctx.Query("startTime"), ctx.Query("endTime"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_window", "startTime and endTime query parameters are required"))
		return
	}

	items, err := server.service.EquipmentAvailability(ctx.Request.Context(), date, window)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	payload := make([]gin.H, 0, len(items))
	for _, item := range items {
		payload = append(payload, gin.H{
			"equipmentId": item.EquipmentID,
			"name":        item.Name,
			"totalStock":  item.TotalStock,
			"reserved":    item.Reserved,
			"available":   item.Available,
			"status":      item.Status,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"date": date.String(), "equipment": payload})
}

func (server *Server) handleCheckDuplicate(ctx *gin.Context) {
	claims := getClaims(ctx)
	var payload duplicateCheckPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	date, err := booking.ParseDateOnly(payload.Date)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	window, err := parseWindow(payload.StartTime, payload.EndTime)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}

	check, err := server.service.CheckDuplicate(ctx.Request.Context(), claims.UserID, payload.CourtID, date, window)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"isDuplicate": check.IsDuplicate,
		"message":     check.Message,
	})
}

func (server *Server) handleCheckout(ctx *gin.Context) {
	claims := getClaims(ctx)
	if server.gateway == nil {
		ctx.JSON(http.StatusServiceUnavailable, errorResponse("gateway_unavailable", "payment gateway is not configured"))
		return
	}
	var payload bookingPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	request, err := payload.toRequest(claims.UserID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}

	quote, err := server.service.PrepareCheckout(ctx.Request.Context(), request)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}

	metadata, err := paymongo.EncodeBookingMetadata(request, quote.Total)
	if err != nil {
		server.logger.Error("encode booking metadata", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "checkout failed"))
		return
	}
	session, err := server.gateway.CreateCheckoutSession(ctx.Request.Context(), paymongo.CheckoutParams{
		Amount:      quote.Total,
		LineItems:   quote.LineItems,
		Metadata:    metadata,
		Description: "Court reservation",
	})
	if err != nil {
		server.logger.Error("create checkout session", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("gateway_error", "checkout session failed"))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"sessionId":      session.SessionID,
		"checkoutUrl":    session.CheckoutURL,
		"amountCentavos": quote.Total.Int64(),
		"lineItems":      lineItemsPayload(quote.LineItems),
	})
}

func (server *Server) handleCashBooking(ctx *gin.Context) {
	claims := getClaims(ctx)
	var payload bookingPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	request, err := payload.toRequest(claims.UserID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}

	result, err := server.service.CreateCashBooking(ctx.Request.Context(), request)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	server.publisher.PublishBookingEvent(ctx.Request.Context(), notify.RoutingKeyBookingConfirmed,
		notify.EventFromResult(result, string(booking.ReservationStatusConfirmed)))
	ctx.JSON(http.StatusCreated, bookingResultPayload(result))
}

func (server *Server) handleQRBooking(ctx *gin.Context) {
	claims := getClaims(ctx)
	if server.gateway == nil {
		ctx.JSON(http.StatusServiceUnavailable, errorResponse("gateway_unavailable", "payment gateway is not configured"))
		return
	}
	var payload qrBookingPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	request, err := payload.toRequest(claims.UserID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}

	qr, err := server.gateway.GenerateQRCode(ctx.Request.Context(), paymongo.QRParams{
		MobileNumber: payload.MobileNumber,
		Notes:        request.Notes,
	})
	if err != nil {
		server.logger.Error("generate qr code", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("gateway_error", "qr generation failed"))
		return
	}

	result, err := server.service.CreateQRBooking(ctx.Request.Context(), request, qr.CodeID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	response := bookingResultPayload(result)
	response["qrCodeId"] = qr.CodeID
	response["qrImage"] = qr.QRImage
	ctx.JSON(http.StatusCreated, response)
}

func (server *Server) handleCancel(ctx *gin.Context) {
	reservationID, err := strconv.ParseInt(ctx.Param("reservationId"), 10, 64)
	if err != nil || reservationID <= 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_reservation", "reservation id must be a positive integer"))
		return
	}
	if err := server.service.CancelReservation(ctx.Request.Context(), reservationID); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": string(booking.ReservationStatusCancelled)})
}

// handleWebhook receives gateway payment events. Signature failures are
// rejected with 401; malformed-but-signed payloads are acknowledged so
// the gateway stops retrying junk; persistence failures return 500 so
// the gateway retries.
func (server *Server) handleWebhook(ctx *gin.Context) {
	rawBody, err := io.ReadAll(io.LimitReader(ctx.Request.Body, 1<<20))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "unreadable body"))
		return
	}
	signature := ctx.GetHeader("Paymongo-Signature")
	if err := paymongo.VerifySignature(rawBody, signature, server.webhookSecret); err != nil {
		server.logger.Warn("webhook signature rejected", zap.Error(err))
		ctx.JSON(http.StatusUnauthorized, errorResponse("invalid_signature", "signature verification failed"))
		return
	}

	event, err := paymongo.DecodeEvent(rawBody)
	if err != nil {
		server.logger.Error("webhook payload malformed", zap.Error(err))
		ctx.JSON(http.StatusOK, gin.H{"received": true, "outcome": "malformed"})
		return
	}
	server.reconcile(ctx, event)
}

// handleTestWebhook accepts unsigned events for sandbox testing. The
// route is not registered in production.
func (server *Server) handleTestWebhook(ctx *gin.Context) {
	rawBody, err := io.ReadAll(io.LimitReader(ctx.Request.Body, 1<<20))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "unreadable body"))
		return
	}
	event, err := paymongo.DecodeEvent(rawBody)
	if err != nil {
		ctx.JSON(http.StatusOK, gin.H{"received": true, "outcome": "malformed"})
		return
	}
	server.reconcile(ctx, event)
}

func (server *Server) reconcile(ctx *gin.Context, event booking.PaymentEvent) {
	result, err := server.service.ReconcileEvent(ctx.Request.Context(), event)
	if err != nil {
		if errors.Is(err, booking.ErrMalformedEventPayload) {
			server.logger.Error("webhook event unusable", zap.String("external_reference", event.ExternalReference), zap.Error(err))
			ctx.JSON(http.StatusOK, gin.H{"received": true, "outcome": "malformed"})
			return
		}
		// A retry can never succeed on these; acknowledge so the gateway
		// stops redelivering, and leave the incident in the log.
		if permanentReconcileError(err) {
			server.logger.Error("webhook event rejected",
				zap.String("external_reference", event.ExternalReference),
				zap.Error(err))
			ctx.JSON(http.StatusOK, gin.H{"received": true, "outcome": "rejected"})
			return
		}
		server.logger.Error("webhook reconcile failed",
			zap.String("external_reference", event.ExternalReference),
			zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("reconcile_failed", "event processing failed"))
		return
	}

	switch result.Outcome {
	case booking.OutcomeCreated, booking.OutcomeConfirmed:
		if result.Booking != nil {
			server.publisher.PublishBookingEvent(ctx.Request.Context(), notify.RoutingKeyBookingConfirmed,
				notify.EventFromResult(*result.Booking, string(booking.ReservationStatusConfirmed)))
			server.publisher.PublishBookingEvent(ctx.Request.Context(), notify.RoutingKeyReceiptRequested,
				notify.EventFromResult(*result.Booking, string(booking.PaymentStatusCompleted)))
		}
	case booking.OutcomeCancelled:
		if result.Booking != nil {
			server.publisher.PublishBookingEvent(ctx.Request.Context(), notify.RoutingKeyBookingCancelled,
				notify.EventFromResult(*result.Booking, string(booking.ReservationStatusCancelled)))
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"received": true, "outcome": string(result.Outcome)})
}

// permanentReconcileError reports whether a paid-event materialization
// failed validation in a way no gateway redelivery can fix.
func permanentReconcileError(err error) bool {
	return errors.Is(err, booking.ErrSlotConflict) ||
		errors.Is(err, booking.ErrInsufficientStock) ||
		errors.Is(err, booking.ErrAmountMismatch) ||
		errors.Is(err, booking.ErrCourtNotFound) ||
		errors.Is(err, booking.ErrEquipmentNotFound) ||
		errors.Is(err, booking.ErrValidation) ||
		errors.Is(err, booking.ErrInvalidTimeRange) ||
		errors.Is(err, booking.ErrInvalidAmount) ||
		errors.Is(err, booking.ErrInvalidQuantity) ||
		errors.Is(err, booking.ErrInvalidPaymentMethod)
}

func (server *Server) respondDomainError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotConflict):
		ctx.JSON(http.StatusConflict, errorResponse("slot_conflict", "the requested time slot is already booked"))
	case errors.Is(err, booking.ErrInsufficientStock):
		ctx.JSON(http.StatusConflict, errorResponse("insufficient_stock", "not enough equipment available for the window"))
	case errors.Is(err, booking.ErrReservationClosed):
		ctx.JSON(http.StatusConflict, errorResponse("reservation_closed", "reservation is not in a cancellable state"))
	case errors.Is(err, booking.ErrCourtNotFound),
		errors.Is(err, booking.ErrEquipmentNotFound),
		errors.Is(err, booking.ErrReservationNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, booking.ErrAmountMismatch):
		ctx.JSON(http.StatusBadRequest, errorResponse("amount_mismatch", "client amount does not match the server total"))
	case errors.Is(err, booking.ErrValidation),
		errors.Is(err, booking.ErrInvalidTimeFormat),
		errors.Is(err, booking.ErrInvalidDateFormat),
		errors.Is(err, booking.ErrInvalidTimeRange),
		errors.Is(err, booking.ErrInvalidAmount),
		errors.Is(err, booking.ErrInvalidQuantity),
		errors.Is(err, booking.ErrInvalidPaymentMethod):
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_failed", err.Error()))
	default:
		server.logger.Error("request failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "request failed"))
	}
}

func bookingResultPayload(result booking.BookingResult) gin.H {
	reservations := make([]gin.H, 0, len(result.Reservations))
	for _, reservation := range result.Reservations {
		entry := gin.H{
			"id":        reservation.ID,
			"date":      reservation.Date.String(),
			"startTime": reservation.Window.Start.String(),
			"endTime":   reservation.Window.End.String(),
			"status":    string(reservation.Status),
		}
		if reservation.CourtID != 0 {
			entry["courtId"] = reservation.CourtID
		}
		reservations = append(reservations, entry)
	}
	payload := gin.H{
		"referenceNumber": result.Group.ReferenceNumber,
		"reservations":    reservations,
		"amountCentavos":  result.Total.Int64(),
		"paymentMethod":   string(result.Payment.Method),
		"paymentStatus":   string(result.Payment.Status),
	}
	if result.Rental != nil {
		items := make([]gin.H, 0, len(result.Rental.Items))
		for _, item := range result.Rental.Items {
			items = append(items, gin.H{
				"equipmentId": item.EquipmentID,
				"quantity":    item.Quantity,
				"startTime":   item.Window.Start.String(),
				"endTime":     item.Window.End.String(),
				"subtotal":    item.Subtotal.Int64(),
			})
		}
		payload["rentalItems"] = items
	}
	return payload
}

func lineItemsPayload(items []booking.LineItem) []gin.H {
	payload := make([]gin.H, 0, len(items))
	for _, item := range items {
		payload = append(payload, gin.H{
			"name":       item.Name,
			"unitAmount": item.UnitAmount.Int64(),
			"quantity":   item.Quantity,
			"subtotal":   item.Subtotal.Int64(),
		})
	}
	return payload
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
