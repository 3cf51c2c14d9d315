package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"repscore-engine/internal/domain"
)

// SQLite is the default backend: one file, one writer.
type SQLite struct {
	Pool *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	pool.SetMaxOpenConns(1) // sqlite wants a single writer
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return &SQLite{Pool: pool}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.Pool == nil {
		return nil
	}
	return s.Pool.Close()
}

func (s *SQLite) Migrate() error {
	tx, err := s.Pool.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1 ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  property_id TEXT NOT NULL,
  platform TEXT NOT NULL,
  status TEXT NOT NULL,
  raw_score REAL,
  scale INTEGER NOT NULL DEFAULT 0,
  review_count INTEGER,
  normalized REAL,
  collected_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS identities (
  property_id TEXT NOT NULL,
  platform TEXT NOT NULL,
  ref TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'resolved',
  note TEXT NOT NULL DEFAULT '',
  resolved_at TEXT NOT NULL,
  PRIMARY KEY (property_id, platform)
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  triggered_by TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT,
  complete INTEGER NOT NULL DEFAULT 0,
  not_listed INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  queued INTEGER NOT NULL DEFAULT 0,
  canceled INTEGER NOT NULL DEFAULT 0
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_snapshots_unit
ON snapshots(property_id, platform);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_snapshots_collected
ON snapshots(collected_at);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_runs_started
ON runs(started_at);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLite) InsertSnapshot(ctx context.Context, snap domain.Snapshot) error {
	_, err := s.Pool.ExecContext(ctx, `
INSERT INTO snapshots(property_id, platform, status, raw_score, scale, review_count, normalized, collected_at)
VALUES(?,?,?,?,?,?,?,?);`,
		snap.PropertyID, string(snap.Platform), string(snap.Status),
		snap.RawScore, snap.Scale, snap.ReviewCount, snap.Normalized,
		snap.CollectedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshots returns the newest observation per (property,
// platform). Append-only ids make MAX(id) the latest.
func (s *SQLite) LatestSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	rows, err := s.Pool.QueryContext(ctx, `
SELECT s.id, s.property_id, s.platform, s.status, s.raw_score, s.scale, s.review_count, s.normalized, s.collected_at
FROM snapshots s
JOIN (
  SELECT property_id, platform, MAX(id) AS max_id
  FROM snapshots
  GROUP BY property_id, platform
) m ON s.id = m.max_id
ORDER BY s.property_id, s.platform;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshotsText(rows)
}

func (s *SQLite) ListSnapshots(ctx context.Context, opts ListOpts) ([]domain.Snapshot, error) {
	if opts.Limit <= 0 || opts.Limit > 1000 {
		opts.Limit = 200
	}

	var conds []string
	var args []any
	if opts.PropertyID != "" {
		conds = append(conds, "property_id = ?")
		args = append(args, opts.PropertyID)
	}
	if opts.Platform != "" {
		conds = append(conds, "platform = ?")
		args = append(args, opts.Platform)
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
SELECT id, property_id, platform, status, raw_score, scale, review_count, normalized, collected_at
FROM snapshots
%s
ORDER BY id DESC
LIMIT ?;
`, where)

	rows, err := s.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshotsText(rows)
}

// GetIdentity returns the cached resolution for the pair, or ok=false
// when the property was never conclusively resolved on that platform.
func (s *SQLite) GetIdentity(ctx context.Context, propertyID string, pl domain.Platform) (IdentityRow, bool, error) {
	row := IdentityRow{PropertyID: propertyID, Platform: pl}
	var resolvedAt string
	err := s.Pool.QueryRowContext(ctx, `
SELECT ref, status, note, resolved_at
FROM identities
WHERE property_id = ? AND platform = ?
LIMIT 1;`, propertyID, string(pl)).Scan(&row.Ref, &row.Status, &row.Note, &resolvedAt)

	if err == sql.ErrNoRows {
		return IdentityRow{}, false, nil
	}
	if err != nil {
		return IdentityRow{}, false, err
	}
	row.ResolvedAt, _ = time.Parse(time.RFC3339, resolvedAt)
	return row, true, nil
}

func (s *SQLite) PutIdentity(ctx context.Context, row IdentityRow) error {
	if row.PropertyID == "" || !row.Platform.Valid() {
		return nil
	}
	_, err := s.Pool.ExecContext(ctx, `
INSERT INTO identities(property_id, platform, ref, status, note, resolved_at)
VALUES(?,?,?,?,?,?)
ON CONFLICT(property_id, platform) DO UPDATE SET
  ref = excluded.ref,
  status = excluded.status,
  note = excluded.note,
  resolved_at = excluded.resolved_at;
`, row.PropertyID, string(row.Platform), row.Ref, row.Status, row.Note,
		row.ResolvedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *SQLite) InsertRun(ctx context.Context, rec domain.RunRecord) error {
	_, err := s.Pool.ExecContext(ctx, `
INSERT INTO runs(run_id, triggered_by, started_at)
VALUES(?,?,?);`,
		rec.RunID, string(rec.Trigger), rec.StartedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLite) FinishRun(ctx context.Context, rec domain.RunRecord) error {
	finished := time.Now().UTC()
	if rec.FinishedAt != nil {
		finished = rec.FinishedAt.UTC()
	}
	_, err := s.Pool.ExecContext(ctx, `
UPDATE runs SET
  finished_at = ?,
  complete = ?,
  not_listed = ?,
  failed = ?,
  queued = ?,
  canceled = ?
WHERE run_id = ?;`,
		finished.Format(time.RFC3339),
		rec.Complete, rec.NotListed, rec.Failed, rec.Queued, rec.Canceled, rec.RunID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.Pool.QueryContext(ctx, `
SELECT run_id, triggered_by, started_at, finished_at, complete, not_listed, failed, queued, canceled
FROM runs
ORDER BY started_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var trigger, started string
		var finished sql.NullString
		if err := rows.Scan(&rec.RunID, &trigger, &started, &finished,
			&rec.Complete, &rec.NotListed, &rec.Failed, &rec.Queued, &rec.Canceled); err != nil {
			return nil, err
		}
		rec.Trigger = domain.Trigger(trigger)
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished.Valid {
			t, _ := time.Parse(time.RFC3339, finished.String)
			rec.FinishedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// scanSnapshotsText scans snapshot rows whose collected_at is stored
// as RFC3339 text.
func scanSnapshotsText(rows *sql.Rows) ([]domain.Snapshot, error) {
	var out []domain.Snapshot
	for rows.Next() {
		var snap domain.Snapshot
		var platform, status, collected string
		var raw, norm sql.NullFloat64
		var count sql.NullInt64
		if err := rows.Scan(&snap.ID, &snap.PropertyID, &platform, &status,
			&raw, &snap.Scale, &count, &norm, &collected); err != nil {
			return nil, err
		}
		snap.Platform = domain.Platform(platform)
		snap.Status = domain.SnapStatus(status)
		if raw.Valid {
			snap.RawScore = &raw.Float64
		}
		if norm.Valid {
			snap.Normalized = &norm.Float64
		}
		if count.Valid {
			n := int(count.Int64)
			snap.ReviewCount = &n
		}
		snap.CollectedAt, _ = time.Parse(time.RFC3339, collected)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
