// Package sheets writes keyed rows to a Google Sheets worksheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// ErrNotConfigured is returned when no spreadsheet is set up.
var ErrNotConfigured = errors.New("spreadsheet export is not configured")

// api is the slice of the Sheets API the client uses.
type api interface {
	SheetID(ctx context.Context, title string) (int64, bool, error)
	AddSheet(ctx context.Context, title string) (int64, error)
	Get(ctx context.Context, rng string) ([][]interface{}, error)
	Update(ctx context.Context, rng string, rows [][]interface{}) error
	Append(ctx context.Context, rng string, rows [][]interface{}) error
	BoldRow(ctx context.Context, sheetID int64, row, columns int) error
}

// Client upserts rows keyed by their first column.
type Client struct {
	api       api
	worksheet string

	mu    sync.Mutex
	ready bool
}

// New connects to a spreadsheet with a service account credentials file.
func New(ctx context.Context, credentialsFile, spreadsheetID, worksheet string) (*Client, error) {
	if credentialsFile == "" || spreadsheetID == "" {
		return nil, ErrNotConfigured
	}
	srv, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return newClient(&googleAPI{srv: srv, spreadsheetID: spreadsheetID}, worksheet), nil
}

func newClient(a api, worksheet string) *Client {
	return &Client{api: a, worksheet: worksheet}
}

func (c *Client) rng(cells string) string {
	return fmt.Sprintf("'%s'!%s", c.worksheet, cells)
}

// Upsert replaces the row whose first cell equals key, or appends it. The
// header is written in bold the first time the worksheet is used.
func (c *Client) Upsert(ctx context.Context, header []string, key string, row []interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		if err := c.prepare(ctx, header); err != nil {
			return err
		}
		c.ready = true
	}

	keys, err := c.api.Get(ctx, c.rng("A:A"))
	if err != nil {
		return fmt.Errorf("failed to read keys: %w", err)
	}
	for i, cells := range keys {
		if i == 0 || len(cells) == 0 {
			continue
		}
		if fmt.Sprint(cells[0]) == key {
			if err := c.api.Update(ctx, c.rng(fmt.Sprintf("A%d", i+1)), [][]interface{}{row}); err != nil {
				return fmt.Errorf("failed to update row: %w", err)
			}
			return nil
		}
	}
	if err := c.api.Append(ctx, c.rng("A1"), [][]interface{}{row}); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

func (c *Client) prepare(ctx context.Context, header []string) error {
	sheetID, ok, err := c.api.SheetID(ctx, c.worksheet)
	if err != nil {
		return fmt.Errorf("failed to look up worksheet: %w", err)
	}
	if !ok {
		if sheetID, err = c.api.AddSheet(ctx, c.worksheet); err != nil {
			return fmt.Errorf("failed to create worksheet: %w", err)
		}
		log.Info().Str("worksheet", c.worksheet).Msg("Created worksheet")
	}

	first, err := c.api.Get(ctx, c.rng("A1:A1"))
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if len(first) > 0 && len(first[0]) > 0 {
		return nil
	}

	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := c.api.Update(ctx, c.rng("A1"), [][]interface{}{cells}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := c.api.BoldRow(ctx, sheetID, 0, len(header)); err != nil {
		return fmt.Errorf("failed to format header: %w", err)
	}
	return nil
}

// googleAPI implements api on the generated Sheets client.
type googleAPI struct {
	srv           *gsheets.Service
	spreadsheetID string
}

func (g *googleAPI) SheetID(ctx context.Context, title string) (int64, bool, error) {
	ss, err := g.srv.Spreadsheets.Get(g.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, false, err
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, true, nil
		}
	}
	return 0, false, nil
}

func (g *googleAPI) AddSheet(ctx context.Context, title string) (int64, error) {
	resp, err := g.srv.Spreadsheets.BatchUpdate(g.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{Properties: &gsheets.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return 0, errors.New("empty add sheet reply")
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (g *googleAPI) Get(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := g.srv.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleAPI) Update(ctx context.Context, rng string, rows [][]interface{}) error {
	_, err := g.srv.Spreadsheets.Values.Update(g.spreadsheetID, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (g *googleAPI) Append(ctx context.Context, rng string, rows [][]interface{}) error {
	_, err := g.srv.Spreadsheets.Values.Append(g.spreadsheetID, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (g *googleAPI) BoldRow(ctx context.Context, sheetID int64, row, columns int) error {
	_, err := g.srv.Spreadsheets.BatchUpdate(g.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			RepeatCell: &gsheets.RepeatCellRequest{
				Range: &gsheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    int64(row),
					EndRowIndex:      int64(row + 1),
					StartColumnIndex: 0,
					EndColumnIndex:   int64(columns),
				},
				Cell: &gsheets.CellData{
					UserEnteredFormat: &gsheets.CellFormat{TextFormat: &gsheets.TextFormat{Bold: true}},
				},
				Fields: "userEnteredFormat.textFormat.bold",
			},
		}},
	}).Context(ctx).Do()
	return err
}
