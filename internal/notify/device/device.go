// Package device sends WhatsApp messages as a linked device of the
// operator's own account, using the multi-device protocol.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"temporada/internal/notify"
)

// ErrNotPaired is returned when no device session exists yet.
var ErrNotPaired = errors.New("whatsapp device not paired: run whatsapp-link first")

// Client is a notify.Sender backed by a whatsmeow session stored in dir.
type Client struct {
	wa  *whatsmeow.Client
	log zerolog.Logger

	mu        sync.Mutex
	connected bool
}

// Open loads (or creates) the device session database under dir.
func Open(ctx context.Context, dir string, log zerolog.Logger) (*Client, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s/whatsmeow.db?_foreign_keys=on", dir), nil)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	c := &Client{
		wa:  whatsmeow.NewClient(deviceStore, nil),
		log: log.With().Str("component", "whatsapp_device").Logger(),
	}
	c.wa.AddEventHandler(c.handleEvent)
	return c, nil
}

func (c *Client) Mode() string { return notify.ModeDevice }

// Paired reports whether the store holds a linked session.
func (c *Client) Paired() bool {
	return c.wa.Store.ID != nil
}

// Pair links a new session, writing each QR code to w until the phone
// scans one or the codes expire.
func (c *Client) Pair(ctx context.Context, w io.Writer) error {
	if c.Paired() {
		return c.connect()
	}

	qrChan, err := c.wa.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	if err := c.connect(); err != nil {
		return err
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			q, err := qrcode.New(evt.Code, qrcode.Medium)
			if err != nil {
				fmt.Fprintf(w, "QR code: %s\n", evt.Code)
				continue
			}
			fmt.Fprintln(w, "\n"+q.ToSmallString(false))
			fmt.Fprintln(w, "WhatsApp > Aparelhos conectados > Conectar um aparelho")
		case "success":
			c.log.Info().Msg("Device paired")
			return nil
		default:
			c.log.Info().Str("event", evt.Event).Msg("Pairing event")
		}
	}
	if !c.Paired() {
		return errors.New("pairing did not complete")
	}
	return nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected && c.wa.IsConnected() {
		return nil
	}
	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	c.connected = true
	return nil
}

// Send delivers body to phone after checking the number is on WhatsApp.
func (c *Client) Send(ctx context.Context, phone, body string) (notify.Result, error) {
	if !c.Paired() {
		return notify.Result{}, ErrNotPaired
	}
	if err := c.connect(); err != nil {
		return notify.Result{}, err
	}

	resp, err := c.wa.IsOnWhatsApp(ctx, []string{"+" + phone})
	if err != nil {
		return notify.Result{}, fmt.Errorf("verify number: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return notify.Result{}, fmt.Errorf("number %s is not registered on WhatsApp", phone)
	}
	jid := resp[0].JID
	if jid.IsEmpty() {
		jid = types.NewJID(phone, types.DefaultUserServer)
	}

	c.log.Debug().Str("jid", jid.String()).Str("phone", phone).Msg("Sending message")

	sent, err := c.wa.SendMessage(ctx, jid, &waE2E.Message{Conversation: &body})
	if err != nil {
		return notify.Result{}, fmt.Errorf("send message: %w", err)
	}

	sentAt := sent.Timestamp
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	return notify.Result{Mode: notify.ModeDevice, MessageID: string(sent.ID), SentAt: sentAt}, nil
}

// Close disconnects the session.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wa.Disconnect()
	c.connected = false
}

func (c *Client) handleEvent(evt any) {
	switch evt.(type) {
	case *events.Connected:
		c.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		c.log.Warn().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		c.log.Warn().Msg("Logged out from WhatsApp: pair the device again")
	}
}
