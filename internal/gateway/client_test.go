package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"store_engine/internal/domain"
)

func TestCreateCharge(t *testing.T) {
	var gotKey, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payments" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("X-Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if body["transaction_amount"] != "25.00" {
			t.Errorf("transaction_amount = %v, want 25.00", body["transaction_amount"])
		}

		// Numeric id, the way the real gateway sends it.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 118310847266,
			"status": "pending",
			"point_of_interaction": {"transaction_data": {"qr_code": "QR-PAYLOAD"}}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", zaptest.NewLogger(t))
	defer client.Close()

	charge, err := client.CreateCharge(context.Background(), 2500, "top up", "acct-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if charge.PaymentID != "118310847266" {
		t.Errorf("payment id = %q, want 118310847266", charge.PaymentID)
	}
	if charge.QRCode != "QR-PAYLOAD" {
		t.Errorf("qr code = %q, want QR-PAYLOAD", charge.QRCode)
	}
	if charge.IdempotencyKey == "" || charge.IdempotencyKey != gotKey {
		t.Errorf("idempotency key not sent: local %q, header %q", charge.IdempotencyKey, gotKey)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("authorization = %q, want bearer token", gotAuth)
	}
	if len(charge.Raw) == 0 {
		t.Error("raw gateway payload not kept")
	}
}

func TestCreateChargeGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "t", zaptest.NewLogger(t))
	defer client.Close()

	if _, err := client.CreateCharge(context.Background(), 2500, "x", "a", ""); !errors.Is(err, domain.ErrExternalService) {
		t.Errorf("err = %v, want ErrExternalService", err)
	}
}

func TestPaymentStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/abc-123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "abc-123", "status": "approved"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "t", zaptest.NewLogger(t))
	defer client.Close()

	status, err := client.PaymentStatus(context.Background(), "abc-123")
	if err != nil {
		t.Fatal(err)
	}
	if status != "approved" {
		t.Errorf("status = %q, want approved", status)
	}
}

func TestIsCompleted(t *testing.T) {
	for _, s := range []string{"approved", "accredited", "paid"} {
		if !IsCompleted(s) {
			t.Errorf("IsCompleted(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"pending", "rejected", "", "APPROVED"} {
		if IsCompleted(s) {
			t.Errorf("IsCompleted(%q) = true, want false", s)
		}
	}
}
