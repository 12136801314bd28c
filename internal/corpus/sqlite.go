package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"

	"github.com/chriscorrea/related/internal/recommend"
)

// LoadSQLite runs query against the database at path and converts each row
// into a document keyed by column name. The query must return "id" and
// "title" columns; every other column becomes a passthrough field.
func LoadSQLite(ctx context.Context, path, query string) ([]recommend.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to access database %q: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA query_only=ON"); err != nil {
		return nil, fmt.Errorf("failed to open database %q read-only: %w", path, err)
	}

	records, err := queryRecords(ctx, db, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query database %q: %w", path, err)
	}

	slog.Debug("Loaded SQLite corpus", "path", path, "rows", len(records))

	return recommend.DocumentsFromRecords(records)
}

// queryRecords scans every row of query into a column-keyed map.
func queryRecords(ctx context.Context, db *sql.DB, query string) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []map[string]any{}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(map[string]any, len(columns))
		for i, col := range columns {
			// TEXT may come back as []byte depending on the column affinity
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
