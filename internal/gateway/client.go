// Package gateway talks to the external pay-by-transfer gateway. The
// gateway is an opaque collaborator reached over HTTP: calls may fail, time
// out, or be retried by the caller. Charge creation carries an idempotency
// key so a retried request cannot create two charges for one intent; the
// status check is read-only and always safe to retry.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"resty.dev/v3"

	"store_engine/internal/domain"
)

// Statuses the gateway uses for a settled payment.
var completedStatuses = map[string]bool{
	"approved":   true,
	"accredited": true,
	"paid":       true,
}

// IsCompleted reports whether a gateway status means the payment settled.
func IsCompleted(status string) bool {
	return completedStatuses[status]
}

// Charge is the gateway's answer to a charge creation request.
type Charge struct {
	PaymentID      string
	Status         string
	QRCode         string
	IdempotencyKey string
	Raw            []byte
}

// Client is the resty-backed gateway client.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

// NewClient builds a Client for the gateway at baseURL.
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(25 * time.Second)
	return &Client{http: http, log: logger}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

type chargeRequest struct {
	TransactionAmount string `json:"transaction_amount"`
	Description       string `json:"description"`
	PaymentMethodID   string `json:"payment_method_id"`
	ExternalReference string `json:"external_reference"`
	NotificationURL   string `json:"notification_url,omitempty"`
}

type chargeResponse struct {
	// Raw so numeric and string ids both survive untouched.
	ID                 json.RawMessage `json:"id"`
	Status             string          `json:"status"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode string `json:"qr_code"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// CreateCharge asks the gateway for a new pay-by-transfer charge. Each call
// sends a fresh UUID in X-Idempotency-Key; the caller keeps it alongside
// the transaction so a timed-out request can be retried without creating a
// second charge.
func (c *Client) CreateCharge(ctx context.Context, amountCents int64, description, externalRef, notificationURL string) (*Charge, error) {
	key := uuid.NewString()
	var out chargeResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Idempotency-Key", key).
		SetBody(chargeRequest{
			TransactionAmount: domain.FormatCents(amountCents),
			Description:       description,
			PaymentMethodID:   "pix",
			ExternalReference: externalRef,
			NotificationURL:   notificationURL,
		}).
		SetResult(&out).
		Post("/v1/payments")
	if err != nil {
		return nil, fmt.Errorf("%w: create charge: %v", domain.ErrExternalService, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: create charge returned status %d", domain.ErrExternalService, res.StatusCode())
	}

	paymentID := strings.Trim(string(out.ID), `"`)
	if paymentID == "" || paymentID == "null" {
		return nil, fmt.Errorf("%w: create charge response missing payment id", domain.ErrExternalService)
	}

	c.log.Info("charge created at gateway",
		zap.String("payment_id", paymentID),
		zap.String("status", out.Status))
	return &Charge{
		PaymentID:      paymentID,
		Status:         out.Status,
		QRCode:         out.PointOfInteraction.TransactionData.QRCode,
		IdempotencyKey: key,
		Raw:            res.Bytes(),
	}, nil
}

// PaymentStatus fetches the gateway's current status for a payment.
func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/payments/" + paymentID)
	if err != nil {
		return "", fmt.Errorf("%w: payment status: %v", domain.ErrExternalService, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("%w: payment status returned status %d", domain.ErrExternalService, res.StatusCode())
	}
	return out.Status, nil
}
