// Package google backs the document store with a Google Spreadsheet: one
// worksheet per collection, one row per user holding the user id, the
// document version and the JSON body.
//
// The Sheets API has no transactional write, so the version cell is
// re-checked immediately before every write. A writer that finds a newer
// version than the one it read fails with docstore.ErrConflict instead of
// overwriting; the residual window between check and update is the best the
// API allows.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"kalori/internal/docstore"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client implements docstore.Store on a Google Spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetPrefix   string
}

var _ docstore.Store = (*Client)(nil)

// NewFromEnv creates a Sheets-backed store using environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: GOOGLE_SHEET_PREFIX to namespace the
// collection worksheets (e.g. "kalori_ledgers").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetPrefix:   strings.TrimSpace(os.Getenv("GOOGLE_SHEET_PREFIX")),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets document store initialized")
	return service, nil
}

func (c *Client) sheetName(collection string) string {
	if c.sheetPrefix == "" {
		return collection
	}
	return c.sheetPrefix + "_" + collection
}

// row is a located user row: 1-based sheet row number plus parsed cells.
type row struct {
	number  int
	version docstore.Version
	body    []byte
}

// findRow scans column A of the collection sheet for the user id.
// Returns nil when the user has no row yet.
func (c *Client) findRow(ctx context.Context, collection, userID string) (*row, error) {
	sheet := c.sheetName(collection)
	rng := fmt.Sprintf("%s!A:C", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, storeError("read", sheet, err)
	}

	for i, cells := range resp.Values {
		if len(cells) == 0 {
			continue
		}
		id, _ := cells[0].(string)
		if id != userID {
			continue
		}

		r := &row{number: i + 1}
		if len(cells) > 1 {
			if v, ok := cells[1].(string); ok {
				n, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: corrupt version cell %q for %s/%s", docstore.ErrUnavailable, v, sheet, userID)
				}
				r.version = docstore.Version(n)
			}
		}
		if len(cells) > 2 {
			if b, ok := cells[2].(string); ok {
				r.body = []byte(b)
			}
		}
		return r, nil
	}
	return nil, nil
}

// Read implements docstore.Store.
func (c *Client) Read(ctx context.Context, collection, userID string) (docstore.Document, docstore.Version, error) {
	r, err := c.findRow(ctx, collection, userID)
	if err != nil {
		return nil, 0, err
	}
	if r == nil {
		return nil, 0, nil
	}
	return r.body, r.version, nil
}

// Write implements docstore.Store. The row's version cell is re-read right
// before the update; staleness fails with ErrConflict.
func (c *Client) Write(ctx context.Context, collection, userID string, doc docstore.Document, expected docstore.Version) (docstore.Version, error) {
	sheet := c.sheetName(collection)

	r, err := c.findRow(ctx, collection, userID)
	if err != nil {
		return 0, err
	}

	current := docstore.Version(0)
	if r != nil {
		current = r.version
	}
	if current != expected {
		return 0, docstore.ErrConflict
	}

	next := expected + 1
	values := &gsheet.ValueRange{Values: [][]any{{userID, strconv.FormatInt(int64(next), 10), string(doc)}}}

	if r == nil {
		rng := fmt.Sprintf("%s!A:C", sheet)
		_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, values).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	} else {
		rng := fmt.Sprintf("%s!A%d:C%d", sheet, r.number, r.number)
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
			ValueInputOption("RAW").Context(ctx).Do()
	}
	if err != nil {
		return 0, storeError("write", sheet, err)
	}
	return next, nil
}

// storeError folds every Sheets API failure into ErrUnavailable; the engine
// does not distinguish quota, permission or network causes.
func storeError(op, sheet string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s %s: http %d: %v", docstore.ErrUnavailable, op, sheet, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: %s %s: %v", docstore.ErrUnavailable, op, sheet, err)
}
