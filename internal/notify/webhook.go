// Package notify delivers the once-per-settlement notification to the
// messaging collaborator. Delivery is best-effort; the settlement never
// waits on or rolls back for it.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"store_engine/internal/domain"
)

// Webhook posts a JSON event to a fixed URL.
type Webhook struct {
	http *resty.Client
	url  string
	log  *zap.Logger
}

// NewWebhook builds a notifier for the given URL.
func NewWebhook(url string, logger *zap.Logger) *Webhook {
	http := resty.New().SetTimeout(5 * time.Second)
	return &Webhook{http: http, url: url, log: logger}
}

// Close releases the underlying HTTP client.
func (w *Webhook) Close() error {
	return w.http.Close()
}

type settledEvent struct {
	Event       string `json:"event"`
	ExternalID  string `json:"external_id"`
	AccountRef  string `json:"account_ref"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	SettledAt   string `json:"settled_at"`
}

// PaymentSettled posts the settlement event.
func (w *Webhook) PaymentSettled(ctx context.Context, account *domain.Account, tx *domain.PaymentTransaction) error {
	settledAt := ""
	if tx.ApprovedAt != nil {
		settledAt = tx.ApprovedAt.Format(time.RFC3339)
	}
	res, err := w.http.R().
		SetContext(ctx).
		SetBody(settledEvent{
			Event:       "payment.settled",
			ExternalID:  tx.ExternalID,
			AccountRef:  account.ExternalRef,
			Amount:      domain.FormatCents(tx.AmountCents),
			AmountCents: tx.AmountCents,
			SettledAt:   settledAt,
		}).
		Post(w.url)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("notification endpoint returned status %d", res.StatusCode())
	}
	w.log.Debug("settlement notification delivered", zap.String("external_id", tx.ExternalID))
	return nil
}
