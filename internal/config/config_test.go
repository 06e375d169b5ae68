package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lookupFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolveDatabaseURL(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"local default", map[string]string{}, "sqlite:///app.db"},
		{"render flag", map[string]string{"RENDER": "true"}, "sqlite:////tmp/app.db"},
		{"render external url", map[string]string{"RENDER_EXTERNAL_URL": "https://x.onrender.com"}, "sqlite:////tmp/app.db"},
		{"render flag false", map[string]string{"RENDER": "false"}, "sqlite:///app.db"},
		{"explicit url wins", map[string]string{"RENDER": "true", "DATABASE_URL": "sqlite:////data/prod.db"}, "sqlite:////data/prod.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveDatabaseURL(lookupFrom(tt.env)); got != tt.want {
				t.Errorf("ResolveDatabaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSQLitePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"sqlite:///app.db", "app.db", false},
		{"sqlite:////tmp/app.db", "/tmp/app.db", false},
		{"sqlite:///data/app.db?cache=shared", "data/app.db", false},
		{"./local.db", "./local.db", false},
		{"postgres://user@host/db", "", true},
		{"sqlite://", "", true},
		{"sqlite:///", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSQLitePath(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSQLitePath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSQLitePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadFromDefaults(t *testing.T) {
	cfg := LoadFrom(lookupFrom(map[string]string{}))

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.SecretKey != DefaultSecretKey {
		t.Errorf("SecretKey = %q", cfg.SecretKey)
	}
	if cfg.WhatsAppAPIVersion != "v24.0" {
		t.Errorf("WhatsAppAPIVersion = %q", cfg.WhatsAppAPIVersion)
	}
	if !cfg.WhatsAppSimulated() {
		t.Error("expected simulated WhatsApp without credentials")
	}
	if cfg.CookieSecure {
		t.Error("cookies should not be secure-only locally")
	}
	if cfg.ReportIncludeCancelled || cfg.TemplateStrict || cfg.AllowOverlap {
		t.Error("policy flags should default to false")
	}
	if len(cfg.Warnings()) != 3 {
		t.Errorf("expected 3 warnings, got %v", cfg.Warnings())
	}
}

func TestLoadFromHosted(t *testing.T) {
	cfg := LoadFrom(lookupFrom(map[string]string{
		"RENDER":                   "true",
		"WHATSAPP_TOKEN":           "tok",
		"WHATSAPP_PHONE_NUMBER_ID": "123",
		"WHATSAPP_TIMEOUT":         "3s",
		"SESSION_TTL":              "not-a-duration",
	}))

	if !cfg.Hosted || !cfg.CookieSecure {
		t.Error("hosted config should enable secure cookies")
	}
	if cfg.WhatsAppSimulated() {
		t.Error("credentials present: should not simulate")
	}
	if cfg.WhatsAppTimeout != 3*time.Second {
		t.Errorf("WhatsAppTimeout = %v", cfg.WhatsAppTimeout)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("invalid duration should fall back to default, got %v", cfg.SessionTTL)
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		c := *LoadFrom(lookupFrom(map[string]string{}))
		c.DatabaseURL = "sqlite:///" + filepath.Join(t.TempDir(), "app.db")
		return c
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "non sqlite database",
			mutate:      func(c *Config) { c.DatabaseURL = "postgres://localhost/db" },
			wantErr:     true,
			errorString: "unsupported database scheme 'postgres'",
		},
		{
			name:        "unknown whatsapp driver",
			mutate:      func(c *Config) { c.WhatsAppDriver = "sms" },
			wantErr:     true,
			errorString: "invalid WhatsApp driver 'sms'",
		},
		{
			name:        "unknown attribution",
			mutate:      func(c *Config) { c.ReportAttribution = "weekly" },
			wantErr:     true,
			errorString: "invalid revenue attribution 'weekly'",
		},
		{
			name:        "bad amqp scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost:5672" },
			wantErr:     true,
			errorString: "invalid AMQP URL scheme 'http'",
		},
		{
			name:        "sheets without credentials",
			mutate:      func(c *Config) { c.GoogleSpreadsheetID = "sheet-id" },
			wantErr:     true,
			errorString: "GOOGLE_SERVICE_ACCOUNT_JSON",
		},
		{
			name: "missing password",
			mutate: func(c *Config) {
				c.AdminPassword = ""
				c.AdminPasswordHash = ""
			},
			wantErr:     true,
			errorString: "ADMIN_PASSWORD",
		},
		{
			name:        "bad country code",
			mutate:      func(c *Config) { c.DefaultCountryCode = "+55" },
			wantErr:     true,
			errorString: "invalid default country code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errorString)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	c := *LoadFrom(lookupFrom(map[string]string{}))
	c.DatabaseURL = "sqlite:///" + filepath.Join(t.TempDir(), "app.db")
	c.Port = "abc"
	c.LogLevel = "verbose"

	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid port") || !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("expected both errors, got %v", err)
	}
}
