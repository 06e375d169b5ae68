package device

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"temporada/internal/notify"
)

func TestUnpairedDeviceRefusesToSend(t *testing.T) {
	c, err := Open(context.Background(), t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if c.Paired() {
		t.Fatal("fresh store should not be paired")
	}
	if c.Mode() != notify.ModeDevice {
		t.Fatalf("mode = %q", c.Mode())
	}

	var _ notify.Sender = c
	if _, err := c.Send(context.Background(), "5511987654321", "oi"); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("expected ErrNotPaired, got %v", err)
	}
}
