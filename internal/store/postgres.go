package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"repscore-engine/internal/domain"
)

// Postgres backs shared deployments where several readers follow the
// same score history.
type Postgres struct {
	Pool *sql.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	// the database may still be coming up alongside us
	for i := 0; i < 10; i++ {
		if err = pool.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.Pool == nil {
		return nil
	}
	return p.Pool.Close()
}

func (p *Postgres) Migrate() error {
	_, err := p.Pool.Exec(`
	CREATE TABLE IF NOT EXISTS snapshots (
		id           BIGSERIAL PRIMARY KEY,
		property_id  TEXT        NOT NULL,
		platform     VARCHAR(32) NOT NULL,
		status       VARCHAR(16) NOT NULL,
		raw_score    DOUBLE PRECISION,
		scale        INTEGER     NOT NULL DEFAULT 0,
		review_count INTEGER,
		normalized   DOUBLE PRECISION,
		collected_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS identities (
		property_id TEXT        NOT NULL,
		platform    VARCHAR(32) NOT NULL,
		ref         TEXT        NOT NULL DEFAULT '',
		status      VARCHAR(16) NOT NULL DEFAULT 'resolved',
		note        TEXT        NOT NULL DEFAULT '',
		resolved_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (property_id, platform)
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_id       TEXT        PRIMARY KEY,
		triggered_by VARCHAR(16) NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL,
		finished_at  TIMESTAMPTZ,
		complete     INTEGER     NOT NULL DEFAULT 0,
		not_listed   INTEGER     NOT NULL DEFAULT 0,
		failed       INTEGER     NOT NULL DEFAULT 0,
		queued       INTEGER     NOT NULL DEFAULT 0,
		canceled     BOOLEAN     NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_unit      ON snapshots(property_id, platform);
	CREATE INDEX IF NOT EXISTS idx_snapshots_collected ON snapshots(collected_at);
	CREATE INDEX IF NOT EXISTS idx_runs_started        ON runs(started_at);
	`)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) InsertSnapshot(ctx context.Context, snap domain.Snapshot) error {
	_, err := p.Pool.ExecContext(ctx, `
INSERT INTO snapshots (property_id, platform, status, raw_score, scale, review_count, normalized, collected_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		snap.PropertyID, string(snap.Platform), string(snap.Status),
		snap.RawScore, snap.Scale, snap.ReviewCount, snap.Normalized,
		snap.CollectedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) LatestSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	rows, err := p.Pool.QueryContext(ctx, `
SELECT s.id, s.property_id, s.platform, s.status, s.raw_score, s.scale, s.review_count, s.normalized, s.collected_at
FROM snapshots s
JOIN (
  SELECT property_id, platform, MAX(id) AS max_id
  FROM snapshots
  GROUP BY property_id, platform
) m ON s.id = m.max_id
ORDER BY s.property_id, s.platform`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshotsPG(rows)
}

func (p *Postgres) ListSnapshots(ctx context.Context, opts ListOpts) ([]domain.Snapshot, error) {
	if opts.Limit <= 0 || opts.Limit > 1000 {
		opts.Limit = 200
	}

	var conds []string
	var args []any
	if opts.PropertyID != "" {
		args = append(args, opts.PropertyID)
		conds = append(conds, fmt.Sprintf("property_id = $%d", len(args)))
	}
	if opts.Platform != "" {
		args = append(args, opts.Platform)
		conds = append(conds, fmt.Sprintf("platform = $%d", len(args)))
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
LIMIT $%d`, where, len(args))

	rows, err := p.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshotsPG(rows)
}

func (p *Postgres) GetIdentity(ctx context.Context, propertyID string, pl domain.Platform) (IdentityRow, bool, error) {
	row := IdentityRow{PropertyID: propertyID, Platform: pl}
	err := p.Pool.QueryRowContext(ctx, `
SELECT ref, status, note, resolved_at
FROM identities
WHERE property_id = $1 AND platform = $2
LIMIT 1`, propertyID, string(pl)).Scan(&row.Ref, &row.Status, &row.Note, &row.ResolvedAt)

	if err == sql.ErrNoRows {
		return IdentityRow{}, false, nil
	}
	if err != nil {
		return IdentityRow{}, false, err
	}
	return row, true, nil
}

func (p *Postgres) PutIdentity(ctx context.Context, row IdentityRow) error {
	if row.PropertyID == "" || !row.Platform.Valid() {
		return nil
	}
	_, err := p.Pool.ExecContext(ctx, `
INSERT INTO identities (property_id, platform, ref, status, note, resolved_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (property_id, platform) DO UPDATE SET
	ref = EXCLUDED.ref,
	status = EXCLUDED.status,
	note = EXCLUDED.note,
	resolved_at = EXCLUDED.resolved_at`,
		row.PropertyID, string(row.Platform), row.Ref, row.Status, row.Note, row.ResolvedAt.UTC())
	return err
}

func (p *Postgres) InsertRun(ctx context.Context, rec domain.RunRecord) error {
	_, err := p.Pool.ExecContext(ctx, `
INSERT INTO runs (run_id, triggered_by, started_at)
VALUES ($1,$2,$3)`,
		rec.RunID, string(rec.Trigger), rec.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (p *Postgres) FinishRun(ctx context.Context, rec domain.RunRecord) error {
	finished := time.Now().UTC()
	if rec.FinishedAt != nil {
		finished = rec.FinishedAt.UTC()
	}
	_, err := p.Pool.ExecContext(ctx, `
UPDATE runs SET
	finished_at = $1,
	complete = $2,
	not_listed = $3,
	failed = $4,
	queued = $5,
	canceled = $6
WHERE run_id = $7`,
		finished, rec.Complete, rec.NotListed, rec.Failed, rec.Queued, rec.Canceled, rec.RunID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := p.Pool.QueryContext(ctx, `
SELECT run_id, triggered_by, started_at, finished_at, complete, not_listed, failed, queued, canceled
FROM runs
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var trigger string
		var finished sql.NullTime
		if err := rows.Scan(&rec.RunID, &trigger, &rec.StartedAt, &finished,
			&rec.Complete, &rec.NotListed, &rec.Failed, &rec.Queued, &rec.Canceled); err != nil {
			return nil, err
		}
		rec.Trigger = domain.Trigger(trigger)
		if finished.Valid {
			t := finished.Time
			rec.FinishedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanSnapshotsPG(rows *sql.Rows) ([]domain.Snapshot, error) {
	var out []domain.Snapshot
	for rows.Next() {
		var snap domain.Snapshot
		var platform, status string
		var raw, norm sql.NullFloat64
		var count sql.NullInt64
		if err := rows.Scan(&snap.ID, &snap.PropertyID, &platform, &status,
			&raw, &snap.Scale, &count, &norm, &snap.CollectedAt); err != nil {
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
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
