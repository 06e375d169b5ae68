package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUser          = "user"
	FieldGuestID       = "guest_id"
	FieldReservationID = "reservation_id"
	FieldStatus        = "status"
	FieldCheckIn       = "check_in"
	FieldCheckOut      = "check_out"
	FieldValueCents    = "value_cents"
	FieldPhone         = "phone"
	FieldMode          = "mode"
	FieldMessageID     = "message_id"
	FieldEvent         = "event"
	FieldDatabase      = "database"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentStorage   = "storage"
	ComponentReport    = "report"
	ComponentTemplate  = "template"
	ComponentNotify    = "notify"
	ComponentReceipt   = "receipt"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentRateLimit = "rate_limit"
	ComponentService   = "service"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpNotify   = "notify"
	OpPublish  = "publish"
	OpSync     = "sync"
	OpRender   = "render"
	OpLogin    = "login"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithReservation adds the identifying fields of a reservation.
func (f LogFields) WithReservation(id, guestID int64, checkIn, checkOut, status string, valueCents int64) LogFields {
	f[FieldReservationID] = id
	f[FieldGuestID] = guestID
	f[FieldCheckIn] = checkIn
	f[FieldCheckOut] = checkOut
	f[FieldStatus] = status
	f[FieldValueCents] = valueCents
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a key-sorted slice for slog.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
