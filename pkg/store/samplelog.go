package store

import (
	"context"
	"database/sql"
	"time"

	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Sample is one row of the power log.
type Sample struct {
	Time       time.Time `json:"time"`
	PowerWatts float64   `json:"powerWatts"`
	SessionID  string    `json:"sessionId,omitempty"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS charging_power (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER NOT NULL,
        power REAL NOT NULL,
        session TEXT
    )`,
	`CREATE INDEX IF NOT EXISTS charging_power_ts ON charging_power (ts)`,
}

// SampleLog is an append-only log of charging power samples.
type SampleLog struct {
	db *sql.DB
}

// NewSampleLog opens or creates the database at path and ensures schema.
func NewSampleLog(path string) (*SampleLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open sample log %s", path)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, pkgerrors.Wrapf(err, "failed to create schema (close: %v)", cerr)
			}
			return nil, pkgerrors.Wrap(err, "failed to create schema")
		}
	}
	return &SampleLog{db: db}, nil
}

// Append writes one sample.
func (l *SampleLog) Append(ctx context.Context, s Sample) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO charging_power (ts, power, session) VALUES (?, ?, ?)`,
		s.Time.UnixMilli(), s.PowerWatts, s.SessionID)
	return pkgerrors.Wrap(err, "failed to append sample")
}

// Range returns samples in [since, until], oldest first. A zero bound is
// open.
func (l *SampleLog) Range(ctx context.Context, since, until time.Time) ([]Sample, error) {
	var args []any
	query := `SELECT ts, power, session FROM charging_power WHERE 1=1`
	if !since.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, since.UnixMilli())
	}
	if !until.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, until.UnixMilli())
	}
	query += ` ORDER BY ts, id`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to query samples")
	}
	defer func() { _ = rows.Close() }()

	var res []Sample
	for rows.Next() {
		var (
			ts      int64
			s       Sample
			session sql.NullString
		)
		if err := rows.Scan(&ts, &s.PowerWatts, &session); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to scan sample")
		}
		s.Time = time.UnixMilli(ts)
		s.SessionID = session.String
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read samples")
	}
	return res, nil
}

// Since returns samples newer than d ago.
func (l *SampleLog) Since(ctx context.Context, d time.Duration) ([]Sample, error) {
	return l.Range(ctx, time.Now().Add(-d), time.Time{})
}

// Clear deletes every sample.
func (l *SampleLog) Clear(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM charging_power`)
	return pkgerrors.Wrap(err, "failed to clear samples")
}

// Prune deletes samples older than before and returns how many were removed.
func (l *SampleLog) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM charging_power WHERE ts < ?`, before.UnixMilli())
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to prune samples")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to count pruned samples")
	}
	return n, nil
}

// Ping checks the database is still usable.
func (l *SampleLog) Ping(ctx context.Context) error {
	return pkgerrors.Wrap(l.db.PingContext(ctx), "sample log unreachable")
}

// Close closes the underlying database.

func (l *SampleLog) Close() error { return l.db.Close() }
