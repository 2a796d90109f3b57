package booking

import "fmt"

// LineItem is one priced checkout component, shaped for gateway display and
// for reconstructing amounts from webhook metadata.
type LineItem struct {
	Name       string
	UnitAmount AmountCentavos
	Quantity   int
	Subtotal   AmountCentavos
}

const courtLineItemName = "Court Reservation"

// CourtSubtotal prices a court window: hourly rate times duration, with
// fractional hours supported through minute math.
func CourtSubtotal(court Court, window TimeRange) AmountCentavos {
	minutes := int64(window.DurationMinutes())
	return AmountCentavos(court.HourlyRate.Int64() * minutes / minutesPerHour)
}

// EquipmentSubtotal prices a rental line: hourly rate times hours times
// quantity, again in minutes to keep fractional hours exact.
func EquipmentSubtotal(equipment Equipment, window TimeRange, quantity int) AmountCentavos {
	minutes := int64(window.DurationMinutes())
	return AmountCentavos(equipment.HourlyRate.Int64() * minutes * int64(quantity) / minutesPerHour)
}

// PriceRequest computes every subtotal and the grand total for a request.
// Callers supply lookup functions so pricing stays storage-agnostic.
func PriceRequest(request BookingRequest, courts map[int64]Court, equipments map[int64]Equipment) (CheckoutQuote, error) {
	quote := CheckoutQuote{}
	for _, line := range request.Courts {
		court, ok := courts[line.CourtID]
		if !ok {
			return CheckoutQuote{}, fmt.Errorf("%w: court %d", ErrCourtNotFound, line.CourtID)
		}
		subtotal := CourtSubtotal(court, line.Window)
		quote.LineItems = append(quote.LineItems, LineItem{
			Name:       courtLineItemName,
			UnitAmount: subtotal,
			Quantity:   1,
			Subtotal:   subtotal,
		})
		quote.Total += subtotal
	}
	for _, line := range request.Equipment {
		equipment, ok := equipments[line.EquipmentID]
		if !ok {
			return CheckoutQuote{}, fmt.Errorf("%w: equipment %d", ErrEquipmentNotFound, line.EquipmentID)
		}
		subtotal := EquipmentSubtotal(equipment, line.Window, line.Quantity)
		quote.LineItems = append(quote.LineItems, LineItem{
			Name:       "Rent: " + equipment.Name,
			UnitAmount: AmountCentavos(subtotal.Int64() / int64(line.Quantity)),
			Quantity:   line.Quantity,
			Subtotal:   subtotal,
		})
		quote.Total += subtotal
	}
	if quote.Total <= 0 {
		return CheckoutQuote{}, fmt.Errorf("%w: total must be positive", ErrInvalidAmount)
	}
	return quote, nil
}

// amountTolerance absorbs client-side float rounding when cross-checking a
// client-supplied total against server pricing.
const amountTolerance AmountCentavos = 100

// CrossCheckAmount rejects large disagreements between a client total and
// the server-computed total. Zero client amounts skip the check.
func CrossCheckAmount(clientAmount, serverAmount AmountCentavos) error {
	if clientAmount == 0 {
		return nil
	}
	diff := clientAmount - serverAmount
	if diff < 0 {
		diff = -diff
	}
	if diff > amountTolerance {
		return fmt.Errorf("%w: client sent %d, server computed %d", ErrAmountMismatch, clientAmount, serverAmount)
	}
	return nil
}
