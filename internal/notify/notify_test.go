package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"temporada/internal/config"
	"temporada/internal/core"
)

func TestSimulatedModeMakesNoNetworkCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	cfg := config.LoadFrom(func(k string) string {
		if k == "WHATSAPP_API_BASE_URL" {
			return srv.URL
		}
		return ""
	})
	sender := NewSender(cfg, nil)
	if sender.Mode() != ModeSimulated {
		t.Fatalf("mode = %q, want simulated", sender.Mode())
	}

	d := NewDispatcher(sender, time.Second, nil)
	res, err := d.Dispatch(context.Background(), "5511987654321", "Olá")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.Simulated || res.Mode != ModeSimulated {
		t.Fatalf("result = %+v", res)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("simulated send reached the network %d times", hits)
	}
}

func TestCloudClientSend(t *testing.T) {
	var got cloudRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/v24.0/12345/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer srv.Close()

	c := NewCloudClient(CloudConfig{BaseURL: srv.URL + "/", PhoneNumberID: "12345", AccessToken: "tok"}, srv.Client())
	res, err := c.Send(context.Background(), "5511987654321", "Olá Maria")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID != "wamid.ABC" || res.Mode != ModeCloud || res.Simulated {
		t.Fatalf("result = %+v", res)
	}
	if got.MessagingProduct != "whatsapp" || got.To != "5511987654321" || got.Type != "text" || got.Text.Body != "Olá Maria" {
		t.Fatalf("request = %+v", got)
	}
}

func TestCloudClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"api error message", http.StatusUnauthorized, `{"error":{"message":"Invalid OAuth access token","code":190}}`, "Invalid OAuth access token"},
		{"plain error body", http.StatusBadGateway, `upstream down`, "upstream down"},
		{"no message id", http.StatusOK, `{"messages":[]}`, "no message id"},
		{"bad json", http.StatusOK, `not json`, "parse response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewCloudClient(CloudConfig{BaseURL: srv.URL, PhoneNumberID: "1", AccessToken: "t"}, srv.Client())
			_, err := c.Send(context.Background(), "5511987654321", "x")
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error = %v, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

type stubSender struct {
	err   error
	delay time.Duration
	calls int
}

func (s *stubSender) Mode() string { return ModeCloud }

func (s *stubSender) Send(ctx context.Context, phone, body string) (Result, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{MessageID: "id-1"}, nil
}

func TestDispatcherMapsFailures(t *testing.T) {
	stub := &stubSender{err: errors.New("boom")}
	d := NewDispatcher(stub, time.Second, nil)

	_, err := d.Dispatch(context.Background(), "5511987654321", "x")
	if !core.IsExternal(err) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
}

func TestDispatcherTimeout(t *testing.T) {
	stub := &stubSender{delay: time.Second}
	d := NewDispatcher(stub, 20*time.Millisecond, nil)

	_, err := d.Dispatch(context.Background(), "5511987654321", "x")
	if !core.IsExternal(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}
}

func TestDispatcherValidatesInput(t *testing.T) {
	stub := &stubSender{}
	d := NewDispatcher(stub, time.Second, nil)

	if _, err := d.Dispatch(context.Background(), "abc", "x"); !core.IsValidation(err) {
		t.Errorf("empty phone: got %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "5511987654321", "   "); !core.IsValidation(err) {
		t.Errorf("empty body: got %v", err)
	}
	if stub.calls != 0 {
		t.Errorf("sender called %d times on invalid input", stub.calls)
	}

	res, err := d.Dispatch(context.Background(), "+55 (11) 98765-4321", "x")
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeCloud || res.SentAt.IsZero() {
		t.Errorf("result defaults not filled: %+v", res)
	}
}
