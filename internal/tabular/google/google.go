// Package google implements the tabular store against the Google Sheets API
// using service-account credentials. One spreadsheet holds all sheets; row
// refs are absolute 1-based row numbers within a sheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"kanakku/internal/core"
	"kanakku/internal/tabular"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64 // title -> numeric sheet id, cached
}

var (
	_ tabular.Store    = (*Client)(nil)
	_ tabular.Migrator = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
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
		sheetIDs:      make(map[string]int64),
	}, nil
}

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
	return service, nil
}

// EnsureSheet creates the sheet tab when missing and rewrites the header row
// when it does not match the expected columns. Extra trailing columns in the
// live header are overwritten; data rows are untouched.
func (c *Client) EnsureSheet(ctx context.Context, sheet string, header []string) error {
	if _, err := c.sheetID(ctx, sheet); err != nil {
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
		}}}
		resp, aerr := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
		if aerr != nil {
			return fmt.Errorf("add sheet %s: %w", sheet, aerr)
		}
		if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
			c.mu.Lock()
			c.sheetIDs[sheet] = resp.Replies[0].AddSheet.Properties.SheetId
			c.mu.Unlock()
		}
	}

	rng := fmt.Sprintf("%s!1:1", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	var live []string
	if len(resp.Values) > 0 {
		live = toStrings(resp.Values[0])
	}
	if headerMatches(live, header) {
		return nil
	}

	slog.InfoContext(ctx, "migrating sheet header", "sheet", sheet, "have", len(live), "want", len(header))
	vr := &gsheet.ValueRange{Values: [][]any{toAnys(header)}}
	wr := fmt.Sprintf("%s!A1:%s1", sheet, colLetter(len(header)))
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, wr, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header %s: %w", wr, err)
	}
	return nil
}

func (c *Client) AppendRow(ctx context.Context, sheet string, values []string) (string, error) {
	vr := &gsheet.ValueRange{Values: [][]any{toAnys(values)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A1", vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append row to %s: %w", sheet, err)
	}
	if resp.Updates == nil || resp.Updates.UpdatedRange == "" {
		return "", fmt.Errorf("append row to %s: missing updated range in response", sheet)
	}
	row, err := rowFromRange(resp.Updates.UpdatedRange)
	if err != nil {
		return "", fmt.Errorf("append row to %s: %w", sheet, err)
	}
	return strconv.Itoa(row), nil
}

func (c *Client) UpdateRow(ctx context.Context, sheet, ref string, values []string) error {
	row, err := strconv.Atoi(ref)
	if err != nil || row < 2 {
		return fmt.Errorf("invalid row ref %q for %s", ref, sheet)
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, row, colLetter(len(values)), row)
	vr := &gsheet.ValueRange{Values: [][]any{toAnys(values)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (c *Client) DeleteRow(ctx context.Context, sheet, ref string) error {
	row, err := strconv.Atoi(ref)
	if err != nil || row < 2 {
		return fmt.Errorf("invalid row ref %q for %s", ref, sheet)
	}
	id, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{
			Range: &gsheet.DimensionRange{
				SheetId:    id,
				Dimension:  "ROWS",
				StartIndex: int64(row - 1), // zero-based, half-open
				EndIndex:   int64(row),
			},
		},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d from %s: %w", row, sheet, err)
	}
	return nil
}

// FindAll returns the data rows of the sheet (header row excluded). Refs are
// the absolute row numbers at scan time; deletes shift later rows, so callers
// re-scan before acting on a ref.
func (c *Client) FindAll(ctx context.Context, sheet string) ([]tabular.Row, error) {
	rng := fmt.Sprintf("%s!A2:%s", sheet, colLetter(maxWidth(sheet)))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]tabular.Row, 0, len(resp.Values))
	for i, raw := range resp.Values {
		out = append(out, tabular.Row{
			Ref:    strconv.Itoa(i + 2),
			Values: toStrings(raw),
		})
	}
	return out, nil
}

func (c *Client) sheetID(ctx context.Context, sheet string) (int64, error) {
	c.mu.Lock()
	if id, ok := c.sheetIDs[sheet]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range meta.Sheets {
		if s.Properties != nil {
			c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		}
	}
	if id, ok := c.sheetIDs[sheet]; ok {
		return id, nil
	}
	return 0, &core.NotFoundError{Kind: "sheet", ID: sheet}
}

func maxWidth(sheet string) int {
	if cols, ok := tabular.Schemas[sheet]; ok {
		return len(cols)
	}
	return 26
}

func headerMatches(live, want []string) bool {
	if len(live) < len(want) {
		return false
	}
	for i, col := range want {
		if !strings.EqualFold(strings.TrimSpace(live[i]), col) {
			return false
		}
	}
	return true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toAnys(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// colLetter converts a 1-based column count to an A1 column letter.
func colLetter(n int) string {
	if n < 1 {
		n = 1
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// rowFromRange extracts the row number from an A1 range like "expenses!A5:P5".
func rowFromRange(rng string) (int, error) {
	if i := strings.IndexByte(rng, '!'); i >= 0 {
		rng = rng[i+1:]
	}
	if i := strings.IndexByte(rng, ':'); i >= 0 {
		rng = rng[:i]
	}
	digits := strings.TrimLeft(rng, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("unparsable range %q", rng)
	}
	return row, nil
}
