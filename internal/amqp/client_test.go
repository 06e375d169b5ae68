package amqp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// deadBroker returns a URL whose port refuses connections.
func deadBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return "amqp://guest:guest@" + addr + "/"
}

func offlineClient(t *testing.T) *Client {
	t.Helper()
	return &Client{url: deadBroker(t), exchangeName: "temporada", queueName: "sheets_mirror"}
}

func TestPublishUnreachableBrokerTripsCircuit(t *testing.T) {
	c := offlineClient(t)
	evt := NewReservationEvent(EventReservationCreated, 1, 1)

	for i := 1; i <= maxFailures; i++ {
		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		err := c.Publish(ctx, evt)
		cancel()
		if err == nil {
			t.Fatalf("publish %d succeeded against a dead broker", i)
		}
		if got := atomic.LoadInt64(&c.failureCount); got != int64(i) {
			t.Fatalf("after publish %d failureCount = %d", i, got)
		}
	}
	if atomic.LoadInt32(&c.state) != StateOpen {
		t.Fatalf("state = %d, want open after %d failures", c.state, maxFailures)
	}

	start := time.Now()
	err := c.Publish(t.Context(), evt)
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Fatalf("err = %v, want fast circuit failure", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Error("open circuit still dialled the broker")
	}
}

func TestPublishCircuitStates(t *testing.T) {
	tests := []struct {
		name        string
		state       int32
		lastFailure time.Duration
		ctxCanceled bool
		wantErr     string
		wantState   int32
	}{
		{"open rejects", StateOpen, 0, false, "circuit breaker is open", StateOpen},
		{"open past timeout goes half-open", StateOpen, openTimeout + time.Second, true, context.Canceled.Error(), StateHalfOpen},
		{"closed honours cancelled context", StateClosed, 0, true, context.Canceled.Error(), StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := offlineClient(t)
			c.state = tt.state
			c.lastFailure = time.Now().Add(-tt.lastFailure)

			ctx, cancel := context.WithCancel(t.Context())
			if tt.ctxCanceled {
				cancel()
			} else {
				defer cancel()
			}
			err := c.Publish(ctx, NewReservationEvent(EventGuestDeleted, 0, 3))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Publish() err = %v, want %q", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&c.state); got != tt.wantState {
				t.Errorf("state = %d, want %d", got, tt.wantState)
			}
		})
	}
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	c := offlineClient(t)
	c.state = StateHalfOpen

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if err := c.Publish(ctx, NewReservationEvent(EventReservationUpdated, 2, 1)); err == nil {
		t.Fatal("publish succeeded against a dead broker")
	}
	if atomic.LoadInt32(&c.state) != StateOpen {
		t.Error("a failed trial publish should reopen the circuit")
	}

	c.recordSuccess()
	if c.isCircuitOpen() || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Error("success should close the circuit and clear failures")
	}
}

func TestConsumeUnreachableBroker(t *testing.T) {
	c := offlineClient(t)
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	var calls int
	err := c.Consume(ctx, func(context.Context, *ReservationEvent) error {
		calls++
		return nil
	})
	if err == nil {
		t.Fatal("Consume returned nil without a broker")
	}
	if calls != 0 {
		t.Errorf("handler called %d times", calls)
	}
}

func TestReconnectBackoff(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 0; attempt < 12; attempt++ {
		d := exponentialBackoff(attempt)
		if d < prev {
			t.Errorf("attempt %d: backoff shrank from %v to %v", attempt, prev, d)
		}
		if d > maxBackoff {
			t.Errorf("attempt %d: backoff %v above cap", attempt, d)
		}
		prev = d
	}
	if exponentialBackoff(0) != time.Second || exponentialBackoff(3) != 8*time.Second {
		t.Errorf("backoff(0)=%v backoff(3)=%v", exponentialBackoff(0), exponentialBackoff(3))
	}
	if exponentialBackoff(20) != maxBackoff {
		t.Errorf("backoff(20) = %v, want cap", exponentialBackoff(20))
	}
}

func TestDroppedConnectionDetection(t *testing.T) {
	dropped := []error{
		amqp091.ErrClosed,
		fmt.Errorf("publish message: %w", amqp091.ErrClosed),
		errors.New("dial tcp 127.0.0.1:5672: connect: connection refused"),
		errors.New("write: broken pipe"),
		errors.New("unexpected EOF"),
	}
	for _, err := range dropped {
		if !isConnectionError(err) {
			t.Errorf("isConnectionError(%v) = false", err)
		}
	}
	for _, err := range []error{nil, errors.New("NOT_FOUND - no exchange 'temporada'")} {
		if isConnectionError(err) {
			t.Errorf("isConnectionError(%v) = true", err)
		}
	}
}

func TestNewReservationEvent(t *testing.T) {
	msg := NewReservationEvent(EventReservationUpdated, 12345, 9)

	if msg.Type != EventReservationUpdated || msg.ReservationID != 12345 || msg.GuestID != 9 {
		t.Errorf("NewReservationEvent() = %+v", msg)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Error("NewReservationEvent() Timestamp should be recent")
	}
}

func TestReservationEventFromJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"created", `{"type":"reservation.created","reservation_id":1,"guest_id":2,"timestamp":"2024-01-01T12:00:00Z"}`, false},
		{"guest deleted", `{"type":"guest.deleted","guest_id":2,"timestamp":"2024-01-01T12:00:00Z"}`, false},
		{"unknown type", `{"type":"booking.sync","reservation_id":1}`, true},
		{"wrong field type", `{"type":"reservation.created","reservation_id":"x"}`, true},
		{"not json", `nope`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReservationEventFromJSON([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ReservationEventFromJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
