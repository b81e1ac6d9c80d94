package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/payment"
)

type MockGateway struct {
	CreateSourceFunc func(ctx context.Context, amount int64, currency string) (*payment.Source, error)
}

func (m *MockGateway) CreateSource(ctx context.Context, amount int64, currency string) (*payment.Source, error) {
	return m.CreateSourceFunc(ctx, amount, currency)
}

func TestCreatePaymentIntent(t *testing.T) {
	var gotAmount int64
	var gotCurrency string
	gw := &MockGateway{CreateSourceFunc: func(_ context.Context, amount int64, currency string) (*payment.Source, error) {
		gotAmount, gotCurrency = amount, currency
		return &payment.Source{ID: "src_test_1", Amount: amount, Currency: currency}, nil
	}}
	svc := NewPaymentService(gw, "THB", discardLogger())

	intent, err := svc.CreatePaymentIntent(context.Background(), 49.99)
	if err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}
	if gotAmount != 4999 || gotCurrency != "thb" {
		t.Errorf("gateway got %d %s, want 4999 thb", gotAmount, gotCurrency)
	}
	if intent.ClientSecret != "src_test_1" || intent.Amount != 4999 || intent.Currency != "thb" {
		t.Errorf("intent = %+v", intent)
	}
}

func TestCreatePaymentIntentErrors(t *testing.T) {
	gw := &MockGateway{CreateSourceFunc: func(context.Context, int64, string) (*payment.Source, error) {
		return nil, errors.New("declined")
	}}

	tests := []struct {
		name  string
		svc   *PaymentService
		price float64
		want  error
	}{
		{"zero price", NewPaymentService(gw, "usd", discardLogger()), 0, ErrInvalidInput},
		{"negative price", NewPaymentService(gw, "usd", discardLogger()), -3, ErrInvalidInput},
		{"no gateway", NewPaymentService(nil, "usd", discardLogger()), 10, ErrPaymentsDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.svc.CreatePaymentIntent(context.Background(), tt.price); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := NewPaymentService(gw, "usd", discardLogger()).CreatePaymentIntent(context.Background(), 10); err == nil {
		t.Error("gateway failure: expected error")
	}
}
