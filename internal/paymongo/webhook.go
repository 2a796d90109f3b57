package paymongo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smashvillage/courtbook/pkg/booking"
)

// Signature header segments: t=<timestamp>,te=<test signature>,li=<live
// signature>; the signed payload is "<timestamp>.<raw body>".
const (
	signaturePartTimestamp = "t"
	signaturePartTest      = "te"
	signaturePartLive      = "li"
)

// VerifySignature checks the gateway's HMAC-SHA256 webhook signature
// against the raw body. It fails closed: absent or malformed headers are
// rejected.
func VerifySignature(rawBody []byte, signatureHeader string, webhookSecret string) error {
	if strings.TrimSpace(signatureHeader) == "" {
		return fmt.Errorf("%w: missing signature header", booking.ErrInvalidSignature)
	}
	parts := map[string]string{}
	for _, segment := range strings.Split(signatureHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(segment), "=")
		if !found {
			continue
		}
		parts[key] = value
	}
	timestamp := parts[signaturePartTimestamp]
	if timestamp == "" {
		return fmt.Errorf("%w: missing timestamp segment", booking.ErrInvalidSignature)
	}
	provided := parts[signaturePartLive]
	if provided == "" {
		provided = parts[signaturePartTest]
	}
	if provided == "" {
		return fmt.Errorf("%w: missing signature segment", booking.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return fmt.Errorf("%w: digest mismatch", booking.ErrInvalidSignature)
	}
	return nil
}

// webhookEnvelope mirrors the gateway's nested event JSON:
// {data: {id, attributes: {type, data: {id, attributes}}}}.
type webhookEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type string `json:"type"`
			Data struct {
				ID         string          `json:"id"`
				Attributes json.RawMessage `json:"attributes"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

type resourceAttributes struct {
	Amount        int64             `json:"amount"`
	Metadata      map[string]string `json:"metadata"`
	FailedCode    string            `json:"failed_code"`
	FailedMessage string            `json:"failed_message"`
	Source        struct {
		Type string `json:"type"`
	} `json:"source"`
}

// bookingData is the checkout-time snapshot embedded in session metadata,
// carried through the gateway so the reconciler can materialize the
// reservation after payment.
type bookingData struct {
	UserID   int64  `json:"userId"`
	Date     string `json:"date"`
	Notes    string `json:"notes"`
	Customer struct {
		Name    string `json:"name"`
		Contact string `json:"contact"`
		Email   string `json:"email"`
	} `json:"customer"`
	Courts []struct {
		CourtID   int64  `json:"courtId"`
		StartTime string `json:"startTime"`
		EndTime   string `json:"endTime"`
	} `json:"courts"`
	Equipment []struct {
		EquipmentID int64  `json:"equipmentId"`
		Quantity    int    `json:"quantity"`
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
	} `json:"equipment"`
}

// EncodeBookingMetadata serializes a request into the metadata map sent
// with checkout sessions.
func EncodeBookingMetadata(request booking.BookingRequest, amount booking.AmountCentavos) (map[string]string, error) {
	snapshot := bookingData{
		UserID: request.UserID,
		Date:   request.Date.String(),
		Notes:  request.Notes,
	}
	snapshot.Customer.Name = request.Customer.Name
	snapshot.Customer.Contact = request.Customer.Contact
	snapshot.Customer.Email = request.Customer.Email
	for _, line := range request.Courts {
		snapshot.Courts = append(snapshot.Courts, struct {
			CourtID   int64  `json:"courtId"`
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
		}{line.CourtID, line.Window.Start.String(), line.Window.End.String()})
	}
	for _, line := range request.Equipment {
		snapshot.Equipment = append(snapshot.Equipment, struct {
			EquipmentID int64  `json:"equipmentId"`
			Quantity    int    `json:"quantity"`
			StartTime   string `json:"startTime"`
			EndTime     string `json:"endTime"`
		}{line.EquipmentID, line.Quantity, line.Window.Start.String(), line.Window.End.String()})
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal booking metadata: %w", err)
	}
	return map[string]string{
		"bookingData": string(raw),
		"amount":      fmt.Sprintf("%d", amount.Int64()),
	}, nil
}

// DecodeEvent turns a raw webhook body into the typed event union the
// reconciler dispatches on. Unrecognized event types come back as
// EventUnknown so the endpoint can acknowledge them without action.
func DecodeEvent(rawBody []byte) (booking.PaymentEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return booking.PaymentEvent{}, fmt.Errorf("%w: %v", booking.ErrMalformedEventPayload, err)
	}

	var attributes resourceAttributes
	if len(envelope.Data.Attributes.Data.Attributes) > 0 {
		if err := json.Unmarshal(envelope.Data.Attributes.Data.Attributes, &attributes); err != nil {
			return booking.PaymentEvent{}, fmt.Errorf("%w: resource attributes: %v", booking.ErrMalformedEventPayload, err)
		}
	}

	event := booking.PaymentEvent{
		ExternalReference: envelope.Data.Attributes.Data.ID,
		Amount:            booking.AmountCentavos(attributes.Amount),
		Method:            mapSourceType(attributes.Source.Type),
	}

	switch envelope.Data.Attributes.Type {
	case "checkout_session.payment.paid":
		event.Kind = booking.EventCheckoutSessionPaid
	case "payment.paid":
		event.Kind = booking.EventPaymentPaid
	case "payment.failed", "qrph.expired":
		event.Kind = booking.EventPaymentFailed
		event.FailureReason = strings.TrimSpace(attributes.FailedCode + " " + attributes.FailedMessage)
		return event, nil
	default:
		event.Kind = booking.EventUnknown
		return event, nil
	}

	request, err := decodeBookingMetadata(attributes.Metadata)
	if err != nil {
		return booking.PaymentEvent{}, err
	}
	event.Booking = request
	return event, nil
}

func decodeBookingMetadata(metadata map[string]string) (*booking.BookingRequest, error) {
	raw, ok := metadata["bookingData"]
	if !ok || strings.TrimSpace(raw) == "" {
		// Admin QR confirmations carry no snapshot; the rows already
		// exist and the reconciler promotes them by external reference.
		return nil, nil
	}
	var snapshot bookingData
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("%w: bookingData: %v", booking.ErrMalformedEventPayload, err)
	}
	date, err := booking.ParseDateOnly(snapshot.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: bookingData date: %v", booking.ErrMalformedEventPayload, err)
	}
	request := &booking.BookingRequest{
		UserID: snapshot.UserID,
		Date:   date,
		Notes:  snapshot.Notes,
	}
	request.Customer = booking.GuestContact{
		Name:    snapshot.Customer.Name,
		Contact: snapshot.Customer.Contact,
		Email:   snapshot.Customer.Email,
	}
	for _, line := range snapshot.Courts {
		window, err := parseWindow(line.StartTime, line.EndTime)
		if err != nil {
			return nil, err
		}
		request.Courts = append(request.Courts, booking.CourtLine{CourtID: line.CourtID, Window: window})
	}
	for _, line := range snapshot.Equipment {
		window, err := parseWindow(line.StartTime, line.EndTime)
		if err != nil {
			return nil, err
		}
		request.Equipment = append(request.Equipment, booking.EquipmentLine{
			EquipmentID: line.EquipmentID,
			Quantity:    line.Quantity,
			Window:      window,
		})
	}
	return request, nil
}

func parseWindow(startRaw, endRaw string) (booking.TimeRange, error) {
	start, err := booking.ParseTimeOfDay(startRaw)
	if err != nil {
		return booking.TimeRange{}, fmt.Errorf("%w: bookingData time: %v", booking.ErrMalformedEventPayload, err)
	}
	end, err := booking.ParseTimeOfDay(endRaw)
	if err != nil {
		return booking.TimeRange{}, fmt.Errorf("%w: bookingData time: %v", booking.ErrMalformedEventPayload, err)
	}
	window, err := booking.NewTimeRange(start, end)
	if err != nil {
		return booking.TimeRange{}, fmt.Errorf("%w: bookingData window: %v", booking.ErrMalformedEventPayload, err)
	}
	return window, nil
}

func mapSourceType(sourceType string) booking.PaymentMethod {
	switch strings.ToLower(sourceType) {
	case "gcash":
		return booking.PaymentMethodGCash
	case "paymaya", "maya":
		return booking.PaymentMethodMaya
	case "grab_pay", "grabpay":
		return booking.PaymentMethodGrabPay
	case "dob", "online_banking":
		return booking.PaymentMethodOnlineBanking
	case "qrph":
		return booking.PaymentMethodQRPh
	default:
		return booking.PaymentMethodGCash
	}
}
