package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/payment"
)

// ErrPaymentsDisabled is returned when no processor keys are configured.
var ErrPaymentsDisabled = errors.New("payments are not configured")

// PaymentGateway opens a processor source for an amount in minor units.
type PaymentGateway interface {
	CreateSource(ctx context.Context, amount int64, currency string) (*payment.Source, error)
}

// PaymentService opens payment intents with the processor.
type PaymentService struct {
	gateway  PaymentGateway
	currency string
	log      *slog.Logger
}

// NewPaymentService accepts a nil gateway; every intent then fails with
// ErrPaymentsDisabled.
func NewPaymentService(gateway PaymentGateway, currency string, log *slog.Logger) *PaymentService {
	return &PaymentService{
		gateway:  gateway,
		currency: strings.ToLower(currency),
		log:      log.With(slog.String("service", "payment")),
	}
}

// CreatePaymentIntent opens a source covering price and returns what the
// client needs to complete it.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, price float64) (*model.PaymentIntent, error) {
	amount := payment.MinorUnits(price)
	if amount <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}

	ctx, span := tracer.Start(ctx, "PaymentService.CreatePaymentIntent")
	defer span.End()

	src, err := s.gateway.CreateSource(ctx, amount, s.currency)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	s.log.Info("payment intent created", slog.String("source_id", src.ID), slog.Int64("amount", amount))
	return &model.PaymentIntent{ClientSecret: src.ID, Amount: amount, Currency: s.currency}, nil
}
