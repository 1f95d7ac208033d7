// Package google exports balance snapshots to a Google Sheets
// spreadsheet shared with the treasurers.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"teamkasse/internal/config"
	"teamkasse/internal/export"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ export.SnapshotExporter = (*Client)(nil)

// New creates a Sheets client from service account credentials in the
// config. Inline JSON wins over a credentials file path.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var credentialsJSON []byte
	switch {
	case cfg.GoogleCredentialsJSON != "":
		credentialsJSON = []byte(cfg.GoogleCredentialsJSON)
	case cfg.GoogleCredentialsFile != "":
		data, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	sheetName := cfg.GoogleSheetName
	if sheetName == "" {
		sheetName = "Balances"
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// ExportSnapshot appends one row per player, all stamped with the same
// export time so a snapshot can be filtered out later.
func (c *Client) ExportSnapshot(ctx context.Context, rows []export.SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	exportedAt := time.Now().UTC().Format(time.RFC3339)
	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		b := row.Breakdown
		values = append(values, []any{
			exportedAt,
			row.PlayerID,
			row.PlayerName,
			b.Balance.String(),
			b.Guthaben.String(),
			b.GuthabenRest.String(),
			b.Fines.String(),
			b.Dues.String(),
			b.Beverages.String(),
		})
	}

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName+"!A:I", &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(cctx).
		Do()
	if err != nil {
		return fmt.Errorf("append snapshot rows: %w", err)
	}

	slog.InfoContext(ctx, "Balance snapshot exported",
		"players", len(rows),
		"sheet", c.sheetName)
	return nil
}
