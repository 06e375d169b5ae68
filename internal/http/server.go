package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"sync"
	"time"

	"temporada/internal/auth"
	"temporada/internal/config"
	"temporada/internal/core"
	applog "temporada/internal/log"
	"temporada/internal/message"
	"temporada/internal/middleware/ratelimit"
	"temporada/internal/middleware/security"
	"temporada/internal/middleware/trace"
	"temporada/internal/receipt"
	"temporada/internal/services"
	"temporada/internal/storage"
	appweb "temporada/web"
)

// Store is the part of the repository the server checks directly.
type Store interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (storage.Stats, error)
}

// Deps are the collaborators of the web layer. Receipts may be nil.
type Deps struct {
	Config       *config.Config
	Auth         *auth.Authenticator
	Store        Store
	Reservations *services.ReservationService
	Guests       *services.GuestService
	Reports      *services.ReportService
	Templates    *services.TemplateService
	Receipts     *receipt.Renderer
	Logger       *applog.Logger
}

type Server struct {
	http.Server

	cfg          *config.Config
	auth         *auth.Authenticator
	store        Store
	reservations *services.ReservationService
	guests       *services.GuestService
	reports      *services.ReportService
	tmplSvc      *services.TemplateService
	receipts     *receipt.Renderer
	logger       *applog.Logger

	pages        map[string]*template.Template
	trace        *trace.Middleware
	loginLimiter *ratelimit.Limiter
	apiLimiter   *ratelimit.Limiter
	started      time.Time
	now          func() time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires every route.
func NewServer(addr string, d Deps) (*Server, error) {
	if d.Config == nil || d.Auth == nil {
		return nil, errors.New("http server: config and authenticator are required")
	}
	if d.Logger == nil {
		d.Logger = applog.Discard()
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:          d.Config,
		auth:         d.Auth,
		store:        d.Store,
		reservations: d.Reservations,
		guests:       d.Guests,
		reports:      d.Reports,
		tmplSvc:      d.Templates,
		receipts:     d.Receipts,
		logger:       d.Logger.WithComponent(applog.ComponentHTTP),
		pages:        pages,
		trace:        trace.NewMiddleware(d.Logger),
		loginLimiter: ratelimit.NewLimiter(ratelimit.LoginConfig()),
		apiLimiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		started:      time.Now(),
		now:          time.Now,
	}

	headers := security.DefaultHeadersConfig()
	headers.TrustForwardedProto = d.Config.Hosted

	var handler http.Handler = s.routes()
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = s.trace.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

const loginPath = "/login"

func (s *Server) routes() http.Handler {
	public := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		public.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	public.HandleFunc("GET /healthz", s.handleHealth)
	public.HandleFunc("GET /readyz", s.handleReady)
	public.HandleFunc("GET "+loginPath, s.handleLoginPage)
	public.HandleFunc("POST "+loginPath, s.handleLogin)
	public.HandleFunc("POST /logout", s.handleLogout)

	app := http.NewServeMux()
	app.HandleFunc("GET /{$}", s.handleDashboard)
	app.HandleFunc("GET /ui/relatorio", s.handleReportPartial)
	limitAPI := s.apiLimiter.Middleware(trace.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Muitas requisições."})
	})
	app.Handle("GET /api/relatorio", limitAPI(http.HandlerFunc(s.handleReportJSON)))
	app.HandleFunc("GET /metrics", s.handleMetrics)

	app.HandleFunc("GET /hospedes", s.handleGuestList)
	app.HandleFunc("GET /hospedes/novo", s.handleGuestNew)
	app.HandleFunc("POST /hospedes", s.handleGuestCreate)
	app.HandleFunc("GET /hospedes/{id}", s.handleGuestDetail)
	app.HandleFunc("POST /hospedes/{id}", s.handleGuestUpdate)
	app.HandleFunc("POST /hospedes/{id}/excluir", s.handleGuestDelete)

	app.HandleFunc("GET /reservas", s.handleReservationList)
	app.HandleFunc("GET /reservas/nova", s.handleReservationNew)
	app.HandleFunc("POST /reservas", s.handleReservationCreate)
	app.HandleFunc("GET /reservas/{id}", s.handleReservationDetail)
	app.HandleFunc("GET /reservas/{id}/editar", s.handleReservationEdit)
	app.HandleFunc("POST /reservas/{id}", s.handleReservationUpdate)
	app.HandleFunc("POST /reservas/{id}/excluir", s.handleReservationDelete)
	app.HandleFunc("POST /reservas/{id}/status", s.handleReservationStatus)
	app.HandleFunc("POST /reservas/{id}/whatsapp", s.handleReservationNotify)
	app.HandleFunc("GET /reservas/{id}/mensagem", s.handleReservationMessage)
	app.HandleFunc("GET /reservas/{id}/recibo", s.handleReceiptHTML)
	app.HandleFunc("GET /reservas/{id}/recibo.pdf", s.handleReceiptPDF)

	app.HandleFunc("GET /modelo", s.handleTemplatePage)
	app.HandleFunc("POST /modelo", s.handleTemplateUpdate)
	app.HandleFunc("POST /modelo/preview", s.handleTemplatePreview)

	protected := s.auth.Middleware(loginPath, s.logger)(security.NoStore(app))
	public.Handle("/", protected)
	return public
}

// Shutdown stops the rate limiters and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.loginLimiter.Stop()
		s.apiLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

var templateFuncs = template.FuncMap{
	"statusClass": func(st core.ReservationStatus) string {
		return "status-" + string(st)
	},
	"statuses":     core.Statuses,
	"placeholders": message.Help,
	"pct": func(f float64) string {
		return fmt.Sprintf("%.1f%%", f)
	},
	"barWidth": func(f float64) int {
		switch {
		case f <= 0:
			return 0
		case f < 2:
			return 2
		case f > 100:
			return 100
		}
		return int(f + 0.5)
	},
}

// parsePages builds one template set per page: layout and partials plus
// the page's own "content" block.
func parsePages() (map[string]*template.Template, error) {
	base, err := template.New("layout.html").Funcs(templateFuncs).
		ParseFS(appweb.TemplatesFS, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	pages := map[string]*template.Template{"partials.html": base}
	for _, file := range files {
		name := path.Base(file)
		if name == "layout.html" || name == "partials.html" {
			continue
		}
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(appweb.TemplatesFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}
