// Package paymongo is the payment gateway collaborator: checkout sessions,
// QR Ph codes, and webhook verification. Credentials are injected through
// Config; the booking core never touches them.
package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smashvillage/courtbook/pkg/booking"
)

const (
	defaultBaseURL    = "https://api.paymongo.com/v1"
	defaultTimeout    = 10 * time.Second
	currencyPHP       = "PHP"
	headerContentType = "application/json"
)

// Config carries gateway credentials and endpoints.
type Config struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	SuccessURL    string
	CancelURL     string
}

// Validate ensures required settings are present.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return fmt.Errorf("paymongo secret key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return fmt.Errorf("paymongo webhook secret is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return nil
}

// Client talks to the PayMongo REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient wires a Client; httpClient may be nil for the default.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

// CheckoutParams describes one checkout session request.
type CheckoutParams struct {
	Amount      booking.AmountCentavos
	LineItems   []booking.LineItem
	Metadata    map[string]string
	Description string
}

// CheckoutSession is the gateway's session handle.
type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
}

// QRParams describes a QR Ph generation request.
type QRParams struct {
	MobileNumber string
	Notes        string
}

// QRCode is a generated QR Ph payload for the customer to scan.
type QRCode struct {
	CodeID  string
	QRImage string
}

// CreateCheckoutSession opens a hosted checkout session. The metadata map
// must carry the bookingData snapshot so the webhook reconciler can
// materialize the reservation after payment.
func (client *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error) {
	lineItems := make([]map[string]any, 0, len(params.LineItems))
	for _, item := range params.LineItems {
		lineItems = append(lineItems, map[string]any{
			"name":     item.Name,
			"amount":   item.UnitAmount.Int64(),
			"currency": currencyPHP,
			"quantity": item.Quantity,
		})
	}
	payload := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"line_items":           lineItems,
				"payment_method_types": []string{"gcash", "paymaya", "grab_pay", "dob", "qrph"},
				"success_url":          client.cfg.SuccessURL,
				"cancel_url":           client.cfg.CancelURL,
				"description":          params.Description,
				"metadata":             params.Metadata,
			},
		},
	}

	var decoded struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				CheckoutURL string `json:"checkout_url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := client.post(ctx, "/checkout_sessions", payload, &decoded); err != nil {
		return CheckoutSession{}, err
	}
	return CheckoutSession{
		SessionID:   decoded.Data.ID,
		CheckoutURL: decoded.Data.Attributes.CheckoutURL,
	}, nil
}

// GenerateQRCode creates a QR Ph code for in-person scanning.
func (client *Client) GenerateQRCode(ctx context.Context, params QRParams) (QRCode, error) {
	payload := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"mobile_number": params.MobileNumber,
				"notes":         params.Notes,
				"kind":          "instance",
			},
		},
	}
	var decoded struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				QRImage string `json:"qr_image"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := client.post(ctx, "/qrph", payload, &decoded); err != nil {
		return QRCode{}, err
	}
	return QRCode{CodeID: decoded.Data.ID, QRImage: decoded.Data.Attributes.QRImage}, nil
}

func (client *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	request.Header.Set("Content-Type", headerContentType)
	request.Header.Set("Authorization", "Basic "+basicAuth(client.cfg.SecretKey))

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("gateway call %s: %w", path, err)
	}
	defer func() { _ = response.Body.Close() }()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("gateway call %s: status %d: %s", path, response.StatusCode, truncate(responseBody, 512))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func basicAuth(secretKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(secretKey + ":"))
}

func truncate(raw []byte, limit int) string {
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
