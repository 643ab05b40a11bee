package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/gridinsight/pkg/models"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

// DB wraps the ingestion archive connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn, path: dbPath}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingestions (
		id TEXT PRIMARY KEY,
		ingested_at TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		first_time TEXT,
		last_time TEXT,
		total_kwh REAL NOT NULL,
		total_cost REAL NOT NULL
	);
	CREATE TABLE IF NOT EXISTS usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ingestion_id TEXT NOT NULL REFERENCES ingestions(id),
		seq INTEGER NOT NULL,
		start_time TEXT,
		kwh REAL NOT NULL,
		cost REAL NOT NULL,
		UNIQUE(ingestion_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_ingestions_ingested_at ON ingestions(ingested_at);
	CREATE INDEX IF NOT EXISTS idx_records_ingestion ON usage_records(ingestion_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s.String)
}

// ArchiveIngestion stores an ingestion and its records in one transaction
func (db *DB) ArchiveIngestion(ctx context.Context, summary models.IngestSummary, records []models.UsageRecord) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO ingestions (id, ingested_at, row_count, first_time, last_time, total_kwh, total_cost)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, summary.ID, summary.IngestedAt.UTC().Format(time.RFC3339), summary.Rows,
		formatTime(summary.First), formatTime(summary.Last), summary.TotalUsage, summary.TotalCost)
	if err != nil {
		return fmt.Errorf("inserting ingestion: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO usage_records (ingestion_id, seq, start_time, kwh, cost)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, summary.ID, i, formatTime(r.Timestamp), r.KWh, r.Cost); err != nil {
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ingestion: %w", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanIngestion(row scanner) (models.IngestSummary, error) {
	var summary models.IngestSummary
	var ingestedAt string
	var first, last sql.NullString

	if err := row.Scan(&summary.ID, &ingestedAt, &summary.Rows, &first, &last, &summary.TotalUsage, &summary.TotalCost); err != nil {
		return summary, err
	}

	var err error
	summary.IngestedAt, err = time.Parse(time.RFC3339, ingestedAt)
	if err != nil {
		return summary, fmt.Errorf("parsing ingested_at: %w", err)
	}
	if summary.First, err = parseTime(first); err != nil {
		return summary, fmt.Errorf("parsing first_time: %w", err)
	}
	if summary.Last, err = parseTime(last); err != nil {
		return summary, fmt.Errorf("parsing last_time: %w", err)
	}
	return summary, nil
}

// GetIngestion retrieves one archived ingestion, or nil if it does not exist
func (db *DB) GetIngestion(ctx context.Context, id string) (*models.IngestSummary, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT id, ingested_at, row_count, first_time, last_time, total_kwh, total_cost
	FROM ingestions
	WHERE id = ?
	`, id)

	summary, err := scanIngestion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying ingestion: %w", err)
	}
	return &summary, nil
}

// ListIngestions retrieves archived ingestions, newest first. A limit of 0
// returns all of them.
func (db *DB) ListIngestions(ctx context.Context, limit int) ([]models.IngestSummary, error) {
	query := `
	SELECT id, ingested_at, row_count, first_time, last_time, total_kwh, total_cost
	FROM ingestions
	ORDER BY ingested_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ingestions: %w", err)
	}
	defer rows.Close()

	var results []models.IngestSummary
	for rows.Next() {
		summary, err := scanIngestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, summary)
	}

	return results, rows.Err()
}

// ListRecords retrieves the records of an archived ingestion in their original order
func (db *DB) ListRecords(ctx context.Context, ingestionID string) ([]models.UsageRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT start_time, kwh, cost
	FROM usage_records
	WHERE ingestion_id = ?
	ORDER BY seq
	`, ingestionID)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer rows.Close()

	var results []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		var startTime sql.NullString

		if err := rows.Scan(&startTime, &r.KWh, &r.Cost); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		if r.Timestamp, err = parseTime(startTime); err != nil {
			return nil, fmt.Errorf("parsing start_time: %w", err)
		}

		results = append(results, r)
	}

	return results, rows.Err()
}
