// File: internal/records/sheets/store.go
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/records"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// SpreadsheetID extracts the document id from a share URL. A bare id is
// returned unchanged.
func SpreadsheetID(sheetURL string) (string, error) {
	if m := sheetIDPattern.FindStringSubmatch(sheetURL); m != nil {
		return m[1], nil
	}
	if sheetURL != "" && !strings.ContainsAny(sheetURL, "/:?") {
		return sheetURL, nil
	}
	return "", fmt.Errorf("no spreadsheet id found in %q", sheetURL)
}

// valuesAPI is the slice of the Sheets API the store needs.
type valuesAPI interface {
	FirstSheetTitle(ctx context.Context, spreadsheetID string) (string, error)
	Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	Update(ctx context.Context, spreadsheetID, rng, value string) error
}

// Store reads and writes the first worksheet of a Google spreadsheet. Every
// WriteCell is an independent remote call.
type Store struct {
	api           valuesAPI
	spreadsheetID string
	sheetTitle    string
	limiter       *rate.Limiter
	maxElapsed    time.Duration
	initialWait   time.Duration
	logger        *zap.Logger
}

// New authenticates with the service-account credentials file and binds the
// store to the spreadsheet named by cfg.SheetURL.
func New(ctx context.Context, cfg config.SourceConfig, logger *zap.Logger) (*Store, error) {
	id, err := SpreadsheetID(cfg.SheetURL)
	if err != nil {
		return nil, err
	}
	credentials, err := homedir.Expand(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to expand credentials path: %w", err)
	}
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	srv, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return newStore(serviceAPI{srv: srv}, id, cfg, logger), nil
}

func newStore(api valuesAPI, spreadsheetID string, cfg config.SourceConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := cfg.WriteBurst
	if burst < 1 {
		burst = 1
	}
	maxElapsed := cfg.WriteMaxElapsed
	if maxElapsed <= 0 {
		// A zero MaxElapsedTime makes backoff retry forever.
		maxElapsed = 45 * time.Second
	}
	return &Store{
		api:           api,
		spreadsheetID: spreadsheetID,
		limiter:       rate.NewLimiter(rate.Limit(cfg.WritesPerSecond), burst),
		maxElapsed:    maxElapsed,
		initialWait:   time.Second,
		logger:        logger.Named("sheets"),
	}
}

// ReadAll fetches the whole first worksheet. Row 1 is the header.
func (s *Store) ReadAll(ctx context.Context) (*records.Table, error) {
	title, err := s.title(ctx)
	if err != nil {
		return nil, err
	}

	var values [][]interface{}
	err = s.retry(ctx, func() error {
		var err error
		values, err = s.api.Get(ctx, s.spreadsheetID, quoteTitle(title))
		return classify(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", title, err)
	}
	if len(values) == 0 {
		return records.NewTable(nil, nil), nil
	}

	rows := make([][]string, 0, len(values)-1)
	for _, raw := range values[1:] {
		rows = append(rows, toStrings(raw))
	}
	s.logger.Debug("Worksheet loaded", zap.String("title", title), zap.Int("rows", len(rows)))
	return records.NewTable(toStrings(values[0]), rows), nil
}

// WriteCell writes one value at data row `row`, column `col`, both 0-based.
func (s *Store) WriteCell(ctx context.Context, row, col int, value string) error {
	if row < 0 || col < 0 {
		return fmt.Errorf("invalid cell (%d,%d)", row, col)
	}
	title, err := s.title(ctx)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("write throttle: %w", err)
	}
	rng := quoteTitle(title) + "!" + A1(row+2, col)
	err = s.retry(ctx, func() error {
		return classify(s.api.Update(ctx, s.spreadsheetID, rng, value))
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", rng, err)
	}
	return nil
}

func (s *Store) title(ctx context.Context) (string, error) {
	if s.sheetTitle != "" {
		return s.sheetTitle, nil
	}
	var title string
	err := s.retry(ctx, func() error {
		var err error
		title, err = s.api.FirstSheetTitle(ctx, s.spreadsheetID)
		return classify(err)
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve first worksheet: %w", err)
	}
	s.sheetTitle = title
	return title, nil
}

func (s *Store) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialWait
	b.MaxInterval = 20 * time.Second
	b.MaxElapsedTime = s.maxElapsed
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("Transient Sheets API error, retrying...", zap.Error(err), zap.Duration("wait", wait))
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}

// classify marks everything except quota and server errors as permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return err
		}
		return backoff.Permanent(err)
	}
	return err
}

// A1 renders a 1-based sheet row and 0-based column as A1 notation.
func A1(sheetRow, col int) string {
	letters := ""
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		letters = string(rune('A'+(n-1)%26)) + letters
	}
	return fmt.Sprintf("%s%d", letters, sheetRow)
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func toStrings(raw []interface{}) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}

// serviceAPI adapts the generated client to valuesAPI.
type serviceAPI struct {
	srv *gsheets.Service
}

func (a serviceAPI) FirstSheetTitle(ctx context.Context, spreadsheetID string) (string, error) {
	ss, err := a.srv.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return "", fmt.Errorf("spreadsheet %s has no worksheets", spreadsheetID)
	}
	return ss.Sheets[0].Properties.Title, nil
}

func (a serviceAPI) Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := a.srv.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a serviceAPI) Update(ctx context.Context, spreadsheetID, rng, value string) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := a.srv.Spreadsheets.Values.Update(spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do()
	return err
}
