// Package google reads and appends transactions in a Google Sheets tab.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"txfilter/internal/core"
	"txfilter/internal/dataset"
	applog "txfilter/internal/log"
)

// Header names of the transactions tab, matched case-insensitively.
const (
	HeaderDate      = "Date"
	HeaderIsBuy     = "Is Buy"
	HeaderQuantity  = "Quantity"
	HeaderUnitPrice = "Unit Price"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *applog.Logger
}

// Ensure interface conformance
var (
	_ dataset.Source = (*Client)(nil)
	_ dataset.Writer = (*Client)(nil)
)

// Options selects the spreadsheet and how to authenticate.
type Options struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsFile is a service account key. When empty,
	// GOOGLE_SERVICE_ACCOUNT_JSON and then application default credentials
	// are used.
	CredentialsFile string
	Logger          *applog.Logger
}

// New creates a Sheets client.
func New(ctx context.Context, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Transactions"
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	svc, err := newSheetsService(ctx, opts.CredentialsFile, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: id, sheet: sheet, logger: logger}, nil
}

func newSheetsService(ctx context.Context, credentialsFile string, logger *applog.Logger) (*gsheet.Service, error) {
	opts := []goption.ClientOption{
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}
	switch inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); {
	case credentialsFile != "":
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		logger.InfoContext(ctx, "Using service account file", "path", credentialsFile)
		opts = append(opts, goption.WithCredentialsJSON(data))
	case inline != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		opts = append(opts, goption.WithCredentialsJSON([]byte(inline)))
	default:
		logger.InfoContext(ctx, "Using application default credentials")
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// newHTTPClient is tuned for the Sheets API: pooled keep-alive connections
// and bounded timeouts.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}
}

// NewWithEndpoint builds a client against a custom API endpoint without
// authentication, for emulators and tests.
func NewWithEndpoint(ctx context.Context, endpoint, spreadsheetID, sheet string) (*Client, error) {
	svc, err := gsheet.NewService(ctx,
		goption.WithEndpoint(endpoint),
		goption.WithHTTPClient(newHTTPClient()),
		goption.WithoutAuthentication())
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet, logger: applog.Discard()}, nil
}

// ListTransactions reads the whole tab. Rows that do not parse are skipped
// and counted in the log.
func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:D", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	txs, skipped, err := parseTransactions(resp.Values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rng, err)
	}
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped unparseable sheet rows",
			applog.FieldOperation, applog.OpLoad,
			"skipped", skipped,
			applog.FieldCount, len(txs))
	}
	return txs, nil
}

// AppendTransactions adds one row per transaction below the existing data.
func (c *Client) AppendTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if len(txs) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(txs))
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return 0, fmt.Errorf("transaction %d: %w", i, err)
		}
		rows = append(rows, formatRow(tx))
	}
	rng := fmt.Sprintf("%s!A:D", c.sheet)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", rng, err)
	}
	return len(rows), nil
}
