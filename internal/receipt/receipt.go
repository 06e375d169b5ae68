// Package receipt renders reservation receipts as HTML and prints them to PDF
// with a headless Chromium.
package receipt

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"temporada/internal/core"
	applog "temporada/internal/log"
)

//go:embed templates/receipt.html
var templatesFS embed.FS

// Printer converts an HTML document into PDF bytes.
type Printer interface {
	PrintPDF(ctx context.Context, html []byte) ([]byte, error)
}

type view struct {
	PropertyName string
	Reservation  core.Reservation
	Phone        string
	IssuedAt     string
}

// Renderer produces receipts for one property.
type Renderer struct {
	tmpl     *template.Template
	property string
	printer  Printer
	timeout  time.Duration
	logger   *applog.Logger
	now      func() time.Time
}

func NewRenderer(propertyName string, printer Printer, timeout time.Duration, logger *applog.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/receipt.html")
	if err != nil {
		return nil, fmt.Errorf("parse receipt template: %w", err)
	}
	if logger == nil {
		logger = applog.Discard()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Renderer{
		tmpl:     tmpl,
		property: propertyName,
		printer:  printer,
		timeout:  timeout,
		logger:   logger.WithComponent(applog.ComponentReceipt),
		now:      time.Now,
	}, nil
}

// HTML renders the receipt document. r must carry its joined guest.
func (rd *Renderer) HTML(r core.Reservation) ([]byte, error) {
	var buf bytes.Buffer
	err := rd.tmpl.Execute(&buf, view{
		PropertyName: rd.property,
		Reservation:  r,
		Phone:        formatPhone(r.Guest.Phone),
		IssuedAt:     core.DateOf(rd.now()).Display(),
	})
	if err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF renders the receipt and prints it. Printer failures are returned as
// *core.ExternalServiceError.
func (rd *Renderer) PDF(ctx context.Context, r core.Reservation) ([]byte, error) {
	html, err := rd.HTML(r)
	if err != nil {
		return nil, err
	}
	if rd.printer == nil {
		return nil, &core.ExternalServiceError{Service: "pdf", Err: fmt.Errorf("no PDF printer configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, rd.timeout)
	defer cancel()

	start := time.Now()
	pdf, err := rd.printer.PrintPDF(ctx, html)
	if err != nil {
		rd.logger.LogError(ctx, "Receipt PDF failed", err, applog.OpRender,
			applog.FieldReservationID, r.ID)
		return nil, &core.ExternalServiceError{Service: "pdf", Err: err}
	}
	rd.logger.InfoContext(ctx, "Receipt PDF rendered",
		applog.FieldReservationID, r.ID,
		"bytes", len(pdf),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return pdf, nil
}

// formatPhone shows a Brazilian mobile as +55 (11) 98765-4321 and any
// other number as +digits.
func formatPhone(digits string) string {
	if len(digits) == 13 && digits[:2] == "55" {
		return fmt.Sprintf("+55 (%s) %s-%s", digits[2:4], digits[4:9], digits[9:])
	}
	if len(digits) == 12 && digits[:2] == "55" {
		return fmt.Sprintf("+55 (%s) %s-%s", digits[2:4], digits[4:8], digits[8:])
	}
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// RodPrinter prints through a Chromium launched per call.
type RodPrinter struct {
	// Bin is the browser executable; empty lets rod locate or download one.
	Bin string
	// NoSandbox is needed when running as root in containers.
	NoSandbox bool
}

func (p RodPrinter) PrintPDF(ctx context.Context, html []byte) ([]byte, error) {
	l := launcher.New().Headless(true).Leakless(false).NoSandbox(p.NoSandbox)
	if p.Bin != "" {
		l = l.Bin(p.Bin)
	}
	u, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer l.Kill()

	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.SetDocumentContent(string(html)); err != nil {
		return nil, fmt.Errorf("load receipt: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{PrintBackground: true})
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	pdf, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return pdf, nil
}
