// Package payment talks to the card/QR payment processor.
package payment

import (
	"context"
	"fmt"
	"math"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

// Source is the processor object a client completes a payment against.
type Source struct {
	ID       string
	Amount   int64
	Currency string
}

// Client creates processor sources through omise-go.
type Client struct {
	omc        *omise.Client
	sourceType string
}

func NewClient(publicKey, secretKey, sourceType string) (*Client, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("omise client: %w", err)
	}
	c.SetDebug(false)
	return &Client{omc: c, sourceType: sourceType}, nil
}

// CreateSource opens a source for amount, given in the smallest unit of
// currency.
func (c *Client) CreateSource(ctx context.Context, amount int64, currency string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := &omise.Source{}
	op := &operations.CreateSource{
		Type:     c.sourceType,
		Amount:   amount,
		Currency: currency,
	}
	if err := c.omc.Do(src, op); err != nil {
		return nil, fmt.Errorf("create %s source: %w", c.sourceType, err)
	}
	return &Source{ID: src.ID, Amount: src.Amount, Currency: src.Currency}, nil
}

// MinorUnits converts a price to the smallest currency unit, rounding to the
// nearest cent.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}
