// Package notify publishes booking lifecycle events to a message broker
// so downstream consumers (receipts, notifications) can react without
// blocking the request path.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/smashvillage/courtbook/pkg/booking"
)

const (
	exchangeName = "courtbook.events"

	RoutingKeyBookingConfirmed = "booking.confirmed"
	RoutingKeyBookingCancelled = "booking.cancelled"
	RoutingKeyReceiptRequested = "booking.receipt"

	publishTimeout = 5 * time.Second
)

// BookingEvent is the broker payload for reservation lifecycle changes.
type BookingEvent struct {
	ReferenceNumber string    `json:"referenceNumber"`
	UserID          int64     `json:"userId"`
	Date            string    `json:"date"`
	Amount          int64     `json:"amountCentavos"`
	Method          string    `json:"paymentMethod"`
	Status          string    `json:"status"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// Publisher pushes events to a topic exchange. A nil Publisher is safe to
// call and drops every event, which keeps broker wiring optional.
type Publisher struct {
	channel *amqp.Channel
	conn    *amqp.Connection
	logger  *zap.Logger
}

// NewPublisher dials the broker and declares the topic exchange.
func NewPublisher(brokerURL string, logger *zap.Logger) (*Publisher, error) {
	if brokerURL == "" {
		return nil, fmt.Errorf("broker url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{channel: channel, conn: conn, logger: logger}, nil
}

// PublishBookingEvent sends the event fire-and-forget. Broker failures are
// logged and swallowed so a flaky broker never fails a booking.
func (publisher *Publisher) PublishBookingEvent(ctx context.Context, routingKey string, event BookingEvent) {
	if publisher == nil || publisher.channel == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		publisher.logger.Warn("notify: marshal event",
			zap.String("routing_key", routingKey),
			zap.Error(err))
		return
	}
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = publisher.channel.PublishWithContext(publishCtx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   event.OccurredAt,
		Body:        body,
	})
	if err != nil {
		publisher.logger.Warn("notify: publish event",
			zap.String("routing_key", routingKey),
			zap.String("reference_number", event.ReferenceNumber),
			zap.Error(err))
		return
	}
	publisher.logger.Debug("notify: published event",
		zap.String("routing_key", routingKey),
		zap.String("reference_number", event.ReferenceNumber))
}

// EventFromResult builds a broker event from a completed booking.
func EventFromResult(result booking.BookingResult, status string) BookingEvent {
	event := BookingEvent{
		ReferenceNumber: result.Group.ReferenceNumber,
		Amount:          result.Total.Int64(),
		Method:          string(result.Payment.Method),
		Status:          status,
	}
	if len(result.Reservations) > 0 {
		event.UserID = result.Reservations[0].UserID
		event.Date = result.Reservations[0].Date.String()
	}
	return event
}

// Close releases the channel and connection.
func (publisher *Publisher) Close() error {
	if publisher == nil {
		return nil
	}
	if publisher.channel != nil {
		publisher.channel.Close()
	}
	if publisher.conn != nil {
		return publisher.conn.Close()
	}
	return nil
}
