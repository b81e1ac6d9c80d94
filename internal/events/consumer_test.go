package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

type ackRecorder struct {
	acked, nacked, requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

type finalizerFunc func(ctx context.Context, orderID, transactionID string) (model.UpdateResult, error)

func (f finalizerFunc) FinalizePayment(ctx context.Context, orderID, transactionID string) (model.UpdateResult, error) {
	return f(ctx, orderID, transactionID)
}

type publishedMsg struct {
	key string
	msg amqp.Publishing
}

type fakeChannel struct {
	sent []publishedMsg
	err  error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	if exchange != "" {
		return fmt.Errorf("unexpected exchange %q", exchange)
	}
	f.sent = append(f.sent, publishedMsg{key: key, msg: msg})
	return nil
}

func newTestConsumer(pub channelPublisher, f PaymentFinalizer) *Consumer {
	return &Consumer{
		pub:         pub,
		queue:       "booking.payment.q",
		deadQueue:   "booking.payment.q.dlq",
		maxAttempts: 3,
		finalizer:   f,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestConsumerHandle(t *testing.T) {
	paid := `{"event":"payment.paid","version":1,"data":{"payment_id":"chrg_1","booking_id":"b1"}}`

	tests := []struct {
		name        string
		key         string
		body        string
		headers     amqp.Table
		finalizeErr error
		wantCalled  bool
		wantAck     bool
		wantTo      string
		wantAttempt int32
	}{
		{name: "paid", key: PaymentPaidKey, body: paid, wantCalled: true, wantAck: true},
		{name: "other key", key: "payment.failed", body: paid, wantAck: true},
		{name: "bad json", key: PaymentPaidKey, body: "{", wantAck: true, wantTo: "booking.payment.q.dlq"},
		{name: "missing ids", key: PaymentPaidKey, body: `{"data":{}}`, wantAck: true},
		{name: "store down", key: PaymentPaidKey, body: paid, finalizeErr: errors.New("timeout"),
			wantCalled: true, wantAck: true, wantTo: "booking.payment.q", wantAttempt: 1},
		{name: "store down again", key: PaymentPaidKey, body: paid, headers: amqp.Table{HeaderAttempt: int32(1)},
			finalizeErr: errors.New("timeout"), wantCalled: true, wantAck: true, wantTo: "booking.payment.q", wantAttempt: 2},
		{name: "out of attempts", key: PaymentPaidKey, body: paid, headers: amqp.Table{HeaderAttempt: int32(2)},
			finalizeErr: errors.New("timeout"), wantCalled: true, wantAck: true, wantTo: "booking.payment.q.dlq"},
		{name: "retried copy", key: "booking.payment.q", body: paid,
			headers:    amqp.Table{HeaderAttempt: int32(1), HeaderRoutingKey: PaymentPaidKey},
			wantCalled: true, wantAck: true},
		{name: "bad booking id", key: PaymentPaidKey, body: paid,
			finalizeErr: fmt.Errorf("%w: %q", repository.ErrInvalidID, "b1"), wantCalled: true,
			wantAck: true, wantTo: "booking.payment.q.dlq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			ch := &fakeChannel{}
			c := newTestConsumer(ch, finalizerFunc(func(_ context.Context, orderID, txID string) (model.UpdateResult, error) {
				called = true
				if orderID != "b1" || txID != "chrg_1" {
					t.Errorf("FinalizePayment(%q, %q)", orderID, txID)
				}
				return model.UpdateResult{Acknowledged: true, MatchedCount: 1}, tt.finalizeErr
			}))
			rec := &ackRecorder{}
			c.handle(context.Background(), amqp.Delivery{
				Acknowledger: rec,
				DeliveryTag:  1,
				RoutingKey:   tt.key,
				Headers:      tt.headers,
				Body:         []byte(tt.body),
			})

			if called != tt.wantCalled {
				t.Errorf("finalizer called = %v, want %v", called, tt.wantCalled)
			}
			if rec.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", rec.acked, tt.wantAck)
			}
			if rec.requeued {
				t.Error("delivery was requeued")
			}
			if tt.wantTo == "" {
				if len(ch.sent) != 0 {
					t.Errorf("published %d copies, want none", len(ch.sent))
				}
				return
			}
			if len(ch.sent) != 1 || ch.sent[0].key != tt.wantTo {
				t.Fatalf("published = %+v, want one copy to %s", ch.sent, tt.wantTo)
			}
			got := ch.sent[0].msg
			if string(got.Body) != tt.body {
				t.Errorf("copy body = %s", got.Body)
			}
			if tt.wantAttempt > 0 {
				if got.Headers[HeaderAttempt] != tt.wantAttempt || got.Headers[HeaderRoutingKey] != PaymentPaidKey {
					t.Errorf("retry headers = %v", got.Headers)
				}
			} else if got.Headers[HeaderError] == nil || got.Headers[HeaderQueue] != "booking.payment.q" {
				t.Errorf("dead-letter headers = %v", got.Headers)
			}
		})
	}
}

// A callback whose store write never succeeds is tried maxAttempts times
// and then parked, never looping on the queue.
func TestConsumerStopsRetrying(t *testing.T) {
	var calls int
	ch := &fakeChannel{}
	c := newTestConsumer(ch, finalizerFunc(func(context.Context, string, string) (model.UpdateResult, error) {
		calls++
		return model.UpdateResult{}, errors.New("connection refused")
	}))

	d := amqp.Delivery{
		RoutingKey: PaymentPaidKey,
		Body:       []byte(`{"data":{"payment_id":"chrg_1","booking_id":"b1"}}`),
	}
	for i := 0; i < 10; i++ {
		rec := &ackRecorder{}
		d.Acknowledger = rec
		c.handle(context.Background(), d)
		if rec.requeued || !rec.acked {
			t.Fatalf("delivery %d: acked=%v requeued=%v", i+1, rec.acked, rec.requeued)
		}
		last := ch.sent[len(ch.sent)-1]
		if last.key == c.deadQueue {
			break
		}
		d.RoutingKey = last.key
		d.Headers = last.msg.Headers
	}

	if calls != c.maxAttempts {
		t.Errorf("finalize calls = %d, want %d", calls, c.maxAttempts)
	}
	if last := ch.sent[len(ch.sent)-1]; last.key != c.deadQueue {
		t.Errorf("last copy went to %s, want %s", last.key, c.deadQueue)
	}
}

func TestConsumerRequeuesWhenBrokerRefusesCopy(t *testing.T) {
	c := newTestConsumer(&fakeChannel{err: errors.New("channel closed")},
		finalizerFunc(func(context.Context, string, string) (model.UpdateResult, error) {
			return model.UpdateResult{}, errors.New("timeout")
		}))
	rec := &ackRecorder{}
	c.handle(context.Background(), amqp.Delivery{
		Acknowledger: rec,
		RoutingKey:   PaymentPaidKey,
		Body:         []byte(`{"data":{"payment_id":"chrg_1","booking_id":"b1"}}`),
	})
	if rec.acked || !rec.requeued {
		t.Errorf("acked=%v requeued=%v, want a requeue", rec.acked, rec.requeued)
	}
}

func TestNewEnvelope(t *testing.T) {
	env := newEnvelope(BookingCreated, map[string]string{"booking_id": "b1"})
	if env.Event != BookingCreated || env.Version != 1 {
		t.Errorf("envelope = %+v", env)
	}
	if env.ID == "" || env.OccurredAt == "" {
		t.Errorf("envelope missing id or timestamp: %+v", env)
	}
}
