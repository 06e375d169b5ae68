package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"temporada/internal/core"
	applog "temporada/internal/log"
	"temporada/internal/report"
	ports "temporada/internal/sheets"
)

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	reportSheet       string
	reservationsSheet string
	logger            *applog.Logger
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// Config selects the spreadsheet and the service-account credentials.
// CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID     string
	ReportSheet       string
	ReservationsSheet string
	CredentialsJSON   string
	CredentialsFile   string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(svc, cfg, logger), nil
}

func newClient(svc *gsheet.Service, cfg Config, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.Discard()
	}
	if cfg.ReportSheet == "" {
		cfg.ReportSheet = "Relatorio"
	}
	if cfg.ReservationsSheet == "" {
		cfg.ReservationsSheet = "Reservas"
	}
	return &Client{
		svc:               svc,
		spreadsheetID:     cfg.SpreadsheetID,
		reportSheet:       cfg.ReportSheet,
		reservationsSheet: cfg.ReservationsSheet,
		logger:            logger.WithComponent(applog.ComponentSheets),
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (c *Client) WriteReport(ctx context.Context, rep report.Report) error {
	return c.replace(ctx, c.reportSheet, ports.ReportRows(rep))
}

func (c *Client) WriteReservations(ctx context.Context, rs []core.Reservation) error {
	return c.replace(ctx, c.reservationsSheet, ports.ReservationRows(rs))
}

// replace clears the sheet and writes rows from A1.
func (c *Client) replace(ctx context.Context, sheet string, rows [][]any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, sheet+"!A:Z", &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return &core.ExternalServiceError{Service: "google sheets", Err: fmt.Errorf("clear %s: %w", sheet, err)}
	}

	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = r
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, sheet+"!A1", &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return &core.ExternalServiceError{Service: "google sheets", Err: fmt.Errorf("update %s: %w", sheet, err)}
	}

	c.logger.InfoContext(ctx, "Sheet replaced",
		"sheet", sheet,
		"rows", len(rows),
		applog.FieldOperation, applog.OpSync)
	return nil
}
