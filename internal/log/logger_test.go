package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerAttachesComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentStorage, Output: &buf})
	l.Info("saved", FieldReservationID, 7)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentStorage {
		t.Fatalf("component = %v", rec[FieldComponent])
	}
	if strings.Count(buf.String(), `"component"`) != 1 {
		t.Fatalf("component repeated: %s", buf.String())
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "text", Component: ComponentApp, Output: &buf}).WithComponent(ComponentHTTP)
	l.Info("hello")

	if !strings.Contains(buf.String(), "component=http") || strings.Contains(buf.String(), "component=app") {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if l.Component() != ComponentHTTP {
		t.Fatalf("Component() = %q", l.Component())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"other": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", l)
	}
	want := Discard()
	if got := FromContext(NewContext(context.Background(), want)); got != want {
		t.Fatal("logger not carried by context")
	}
}
