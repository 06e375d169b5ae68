package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSecretKey     = "dev-secret-key"
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin"

	hostedDatabaseURL = "sqlite:////tmp/app.db"
	localDatabaseURL  = "sqlite:///app.db"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	DatabaseURL string
	Hosted      bool

	// Web auth
	SecretKey         string
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	SessionTTL        time.Duration
	CookieSecure      bool

	// Property
	PropertyName       string
	DefaultCountryCode string

	// WhatsApp
	WhatsAppDriver        string
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	WhatsAppAPIVersion    string
	WhatsAppBaseURL       string
	WhatsAppTimeout       time.Duration
	WhatsAppDeviceDir     string

	// Receipts
	ChromeBin      string
	ReceiptTimeout time.Duration

	// Policies
	ReportIncludeCancelled bool
	ReportAttribution      string
	ReportCacheTTL         time.Duration
	TemplateStrict         bool
	AllowOverlap           bool

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleReportSheet        string
	GoogleReservationsSheet  string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SyncInterval             time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the process environment.
func Load() *Config {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through lookup, which returns "" for unset keys.
func LoadFrom(lookup func(string) string) *Config {
	e := env(lookup)
	hosted := IsHosted(lookup)

	return &Config{
		Port: e.str("PORT", "8080"),

		DatabaseURL: ResolveDatabaseURL(lookup),
		Hosted:      hosted,

		SecretKey:         e.str("SECRET_KEY", DefaultSecretKey),
		AdminUsername:     e.str("ADMIN_USERNAME", DefaultAdminUsername),
		AdminPassword:     e.str("ADMIN_PASSWORD", DefaultAdminPassword),
		AdminPasswordHash: e.str("ADMIN_PASSWORD_HASH", ""),
		SessionTTL:        e.duration("SESSION_TTL", 12*time.Hour),
		CookieSecure:      e.boolean("COOKIE_SECURE", hosted),

		PropertyName:       e.str("PROPERTY_NAME", "Casa de Temporada"),
		DefaultCountryCode: e.str("DEFAULT_COUNTRY_CODE", "55"),

		WhatsAppDriver:        strings.ToLower(e.str("WHATSAPP_DRIVER", "cloud")),
		WhatsAppToken:         e.str("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneNumberID: e.str("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAPIVersion:    e.str("WHATSAPP_API_VERSION", "v24.0"),
		WhatsAppBaseURL:       e.str("WHATSAPP_API_BASE_URL", "https://graph.facebook.com"),
		WhatsAppTimeout:       e.duration("WHATSAPP_TIMEOUT", 10*time.Second),
		WhatsAppDeviceDir:     e.str("WHATSAPP_DEVICE_DIR", "./data/whatsapp"),

		ChromeBin:      e.str("CHROME_BIN", ""),
		ReceiptTimeout: e.duration("RECEIPT_TIMEOUT", 30*time.Second),

		ReportIncludeCancelled: e.boolean("REPORT_INCLUDE_CANCELLED", false),
		ReportAttribution:      strings.ToLower(e.str("REPORT_REVENUE_ATTRIBUTION", "checkin")),
		ReportCacheTTL:         e.duration("REPORT_CACHE_TTL", 5*time.Minute),
		TemplateStrict:         e.boolean("TEMPLATE_STRICT", false),
		AllowOverlap:           e.boolean("RESERVATION_ALLOW_OVERLAP", false),

		AMQPURL:      e.str("AMQP_URL", ""),
		AMQPExchange: e.str("AMQP_EXCHANGE", "temporada"),
		AMQPQueue:    e.str("AMQP_QUEUE", "sheets_mirror"),

		GoogleSpreadsheetID:      e.str("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportSheet:        e.str("GOOGLE_REPORT_SHEET", "Relatorio"),
		GoogleReservationsSheet:  e.str("GOOGLE_RESERVATIONS_SHEET", "Reservas"),
		GoogleServiceAccountJSON: e.str("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: e.str("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		SyncInterval:             e.duration("SYNC_INTERVAL", 15*time.Minute),

		LogLevel:  strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(e.str("LOG_FORMAT", "text")),
	}
}

// IsHosted reports whether the process runs on the managed host (Render).
func IsHosted(lookup func(string) string) bool {
	return strings.EqualFold(strings.TrimSpace(lookup("RENDER")), "true") ||
		strings.TrimSpace(lookup("RENDER_EXTERNAL_URL")) != ""
}

// ResolveDatabaseURL picks the single database location for this process:
// DATABASE_URL when set, a writable temp path on the managed host, or a
// file next to the working directory otherwise.
func ResolveDatabaseURL(lookup func(string) string) string {
	if v := strings.TrimSpace(lookup("DATABASE_URL")); v != "" {
		return v
	}
	if IsHosted(lookup) {
		return hostedDatabaseURL
	}
	return localDatabaseURL
}

// ParseSQLitePath converts a sqlite URL into a filesystem path.
// "sqlite:///app.db" is relative, "sqlite:////tmp/app.db" is absolute.
// A bare path without scheme is accepted as is.
func ParseSQLitePath(dbURL string) (string, error) {
	if !strings.Contains(dbURL, "://") {
		if strings.TrimSpace(dbURL) == "" {
			return "", fmt.Errorf("empty database URL")
		}
		return dbURL, nil
	}
	scheme, rest, _ := strings.Cut(dbURL, "://")
	if scheme != "sqlite" {
		return "", fmt.Errorf("unsupported database scheme '%s': only sqlite is supported", scheme)
	}
	if !strings.HasPrefix(rest, "/") {
		return "", fmt.Errorf("invalid sqlite URL '%s': expected sqlite:///path", dbURL)
	}
	path := strings.TrimPrefix(rest, "/")
	if path == "" {
		return "", fmt.Errorf("invalid sqlite URL '%s': missing path", dbURL)
	}
	if q := strings.IndexByte(path, '?'); q >= 0 {
		path = path[:q]
	}
	return path, nil
}

// DatabasePath returns the resolved SQLite file path.
func (c *Config) DatabasePath() (string, error) {
	return ParseSQLitePath(c.DatabaseURL)
}

// WhatsAppSimulated reports whether cloud sends are simulated for lack of credentials.
func (c *Config) WhatsAppSimulated() bool {
	return c.WhatsAppDriver == "cloud" && (c.WhatsAppToken == "" || c.WhatsAppPhoneNumberID == "")
}

// SheetsEnabled reports whether the Google Sheets mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Warnings lists insecure defaults that are allowed but should be logged.
func (c *Config) Warnings() []string {
	var w []string
	if c.SecretKey == DefaultSecretKey {
		w = append(w, "SECRET_KEY not set: using development secret")
	}
	if c.AdminPasswordHash == "" && c.AdminPassword == DefaultAdminPassword {
		w = append(w, "ADMIN_PASSWORD not set: using default password")
	}
	if c.WhatsAppSimulated() {
		w = append(w, "WhatsApp credentials not set: messages will be simulated")
	}
	return w
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if path, err := c.DatabasePath(); err != nil {
		errors = append(errors, err.Error())
	} else {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if strings.TrimSpace(c.SecretKey) == "" {
		errors = append(errors, "SECRET_KEY cannot be empty")
	}
	if strings.TrimSpace(c.AdminUsername) == "" {
		errors = append(errors, "ADMIN_USERNAME cannot be empty")
	}
	if c.AdminPasswordHash == "" && c.AdminPassword == "" {
		errors = append(errors, "either ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be provided")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	switch c.WhatsAppDriver {
	case "cloud":
		if c.WhatsAppBaseURL != "" {
			if u, err := url.Parse(c.WhatsAppBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				errors = append(errors, fmt.Sprintf("invalid WhatsApp API base URL '%s'", c.WhatsAppBaseURL))
			}
		}
	case "device":
		if c.WhatsAppDeviceDir == "" {
			errors = append(errors, "WHATSAPP_DEVICE_DIR cannot be empty when using the device driver")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid WhatsApp driver '%s': must be one of [cloud device]", c.WhatsAppDriver))
	}
	if c.WhatsAppTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid WhatsApp timeout %v: must be positive", c.WhatsAppTimeout))
	}
	if c.ReceiptTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid receipt timeout %v: must be positive", c.ReceiptTimeout))
	}
	if digits := strings.Trim(c.DefaultCountryCode, "0123456789"); digits != "" || len(c.DefaultCountryCode) > 3 {
		errors = append(errors, fmt.Sprintf("invalid default country code '%s': must be 1-3 digits", c.DefaultCountryCode))
	}

	if c.ReportAttribution != "checkin" && c.ReportAttribution != "nights" {
		errors = append(errors, fmt.Sprintf("invalid revenue attribution '%s': must be one of [checkin nights]", c.ReportAttribution))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.SyncInterval < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 minute", c.SyncInterval))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

type env func(string) string

func (e env) str(key, defaultValue string) string {
	if value := strings.TrimSpace(e(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e env) boolean(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func (e env) duration(key string, defaultValue time.Duration) time.Duration {
	if value := e(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
