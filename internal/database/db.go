package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/assetwatch/pkg/models"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored dates sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		asset_category TEXT NOT NULL DEFAULT '',
		asset_code TEXT NOT NULL,
		asset_name TEXT NOT NULL DEFAULT '',
		product_id TEXT NOT NULL DEFAULT '',
		product_name TEXT NOT NULL DEFAULT '',
		quantity REAL,
		price REAL,
		hour_meter REAL,
		event_date TEXT NOT NULL,
		maintenance_group_id TEXT NOT NULL DEFAULT '',
		linked_group_id TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_asset ON events(asset_code);
	CREATE INDEX IF NOT EXISTS idx_events_source ON events(source);
	CREATE INDEX IF NOT EXISTS idx_events_date ON events(event_date);

	CREATE TABLE IF NOT EXISTS publications (
		asset_code TEXT NOT NULL,
		product_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		published_at TEXT NOT NULL,
		PRIMARY KEY (asset_code, product_id)
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// fingerprint identifies an event by where it was imported from and what it says,
// so re-importing the same export is a no-op while repeated identical lines are kept
func fingerprint(origin string, index int, ev models.Event) string {
	h := sha256.New()
	fields := []string{
		origin,
		strconv.Itoa(index),
		string(ev.Source),
		ev.AssetCategory,
		ev.AssetCode,
		ev.AssetName,
		ev.ProductID,
		ev.ProductName,
		formatOptional(ev.Quantity),
		formatOptional(ev.Price),
		formatOptional(ev.HourMeterReading),
		ev.EventDate.UTC().Format(timeLayout),
		ev.MaintenanceGroupID,
		ev.LinkedGroupID,
	}
	h.Write([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

// InsertEvents stores the events of one import in a single transaction,
// ignoring rows already imported from the same origin. It returns how many
// rows were new.
func (db *DB) InsertEvents(ctx context.Context, origin string, events []models.Event) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO events (
		source, asset_category, asset_code, asset_name, product_id, product_name,
		quantity, price, hour_meter, event_date, maintenance_group_id, linked_group_id,
		origin, fingerprint, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for i, ev := range events {
		res, err := stmt.ExecContext(ctx,
			string(ev.Source), ev.AssetCategory, ev.AssetCode, ev.AssetName, ev.ProductID, ev.ProductName,
			nullFloat(ev.Quantity), nullFloat(ev.Price), nullFloat(ev.HourMeterReading),
			ev.EventDate.UTC().Format(timeLayout), ev.MaintenanceGroupID, ev.LinkedGroupID,
			origin, fingerprint(origin, i, ev), createdAt,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting event %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("reading insert result: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing events: %w", err)
	}
	return inserted, nil
}

// EventQuery narrows ListEvents. Zero values select everything.
type EventQuery struct {
	Source     models.Source
	AssetCodes []string
	Since      time.Time
}

// ListEvents retrieves stored events in insertion order
func (db *DB) ListEvents(ctx context.Context, q EventQuery) ([]models.Event, error) {
	query := `
	SELECT id, source, asset_category, asset_code, asset_name, product_id, product_name,
		quantity, price, hour_meter, event_date, maintenance_group_id, linked_group_id
	FROM events
	`
	var where []string
	var args []any
	if q.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(q.Source))
	}
	if len(q.AssetCodes) > 0 {
		where = append(where, "asset_code IN (?"+strings.Repeat(", ?", len(q.AssetCodes)-1)+")")
		for _, code := range q.AssetCodes {
			args = append(args, code)
		}
	}
	if !q.Since.IsZero() {
		where = append(where, "event_date >= ?")
		args = append(args, q.Since.UTC().Format(timeLayout))
	}
	if len(where) > 0 {
		query += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	query += "ORDER BY id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var results []models.Event
	for rows.Next() {
		var ev models.Event
		var source, dateStr string
		var quantity, price, hourMeter sql.NullFloat64

		if err := rows.Scan(&ev.ID, &source, &ev.AssetCategory, &ev.AssetCode, &ev.AssetName,
			&ev.ProductID, &ev.ProductName, &quantity, &price, &hourMeter, &dateStr,
			&ev.MaintenanceGroupID, &ev.LinkedGroupID); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		ev.Source = models.Source(source)
		ev.Quantity = fromNullFloat(quantity)
		ev.Price = fromNullFloat(price)
		ev.HourMeterReading = fromNullFloat(hourMeter)
		ev.EventDate, err = time.Parse(timeLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing event_date of event %d: %w", ev.ID, err)
		}

		results = append(results, ev)
	}

	return results, rows.Err()
}

// AssetCount summarises the stored events of one asset in one log
type AssetCount struct {
	AssetCategory string
	AssetCode     string
	Source        models.Source
	Count         int
	LastEventAt   time.Time
}

// CountByAsset returns event counts per asset and source, ordered by asset code
func (db *DB) CountByAsset(ctx context.Context, source models.Source) ([]AssetCount, error) {
	query := `
	SELECT MAX(asset_category), asset_code, source, COUNT(*), MAX(event_date)
	FROM events
	WHERE ? = '' OR source = ?
	GROUP BY asset_code, source
	ORDER BY asset_code, source
	`

	rows, err := db.conn.QueryContext(ctx, query, string(source), string(source))
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	defer rows.Close()

	var results []AssetCount
	for rows.Next() {
		var c AssetCount
		var src, last string
		if err := rows.Scan(&c.AssetCategory, &c.AssetCode, &src, &c.Count, &last); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		c.Source = models.Source(src)
		c.LastEventAt, err = time.Parse(timeLayout, last)
		if err != nil {
			return nil, fmt.Errorf("parsing event_date: %w", err)
		}
		results = append(results, c)
	}

	return results, rows.Err()
}

// PublishedStatuses returns the last status published per asset/product,
// keyed by PublicationKey
func (db *DB) PublishedStatuses(ctx context.Context) (map[string]models.Status, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT asset_code, product_id, status FROM publications`)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}
	defer rows.Close()

	published := make(map[string]models.Status)
	for rows.Next() {
		var code, productID, status string
		if err := rows.Scan(&code, &productID, &status); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		published[PublicationKey(code, productID)] = models.Status(status)
	}
	return published, rows.Err()
}

// MarkPublished records the status last published for a row
func (db *DB) MarkPublished(ctx context.Context, row models.AssetStatusRow) error {
	query := `
	INSERT INTO publications (asset_code, product_id, status, published_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(asset_code, product_id) DO UPDATE SET status = excluded.status, published_at = excluded.published_at
	`
	_, err := db.conn.ExecContext(ctx, query, row.AssetCode, row.ProductID, string(row.Status), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("marking %s as published: %w", PublicationKey(row.AssetCode, row.ProductID), err)
	}
	return nil
}

// PublicationKey identifies a status row in the publications table
func PublicationKey(assetCode, productID string) string {
	if productID == "" {
		return assetCode
	}
	return assetCode + "/" + productID
}
