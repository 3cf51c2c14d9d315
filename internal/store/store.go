package store

import (
	"context"
	"time"

	"repscore-engine/internal/domain"
)

// Store is the persistence surface: append-only rating snapshots, the
// identity cache, and run history. Two backends exist, a single-file
// sqlite default and postgres for shared deployments.
type Store interface {
	Migrate() error
	Close() error

	InsertSnapshot(ctx context.Context, snap domain.Snapshot) error
	LatestSnapshots(ctx context.Context) ([]domain.Snapshot, error)
	ListSnapshots(ctx context.Context, opts ListOpts) ([]domain.Snapshot, error)

	GetIdentity(ctx context.Context, propertyID string, pl domain.Platform) (IdentityRow, bool, error)
	PutIdentity(ctx context.Context, row IdentityRow) error

	InsertRun(ctx context.Context, rec domain.RunRecord) error
	FinishRun(ctx context.Context, rec domain.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// ListOpts filters snapshot history. Zero values mean no filter.
type ListOpts struct {
	PropertyID string
	Platform   string
	Limit      int
}

// Identity cache statuses. A missing row means the property was never
// resolved on that platform; no-match outcomes are not cached so the
// next run tries again.
const (
	IdentityResolved    = "resolved"
	IdentityNeedsReview = "needs_review"
)

// IdentityRow is one cached resolution outcome per (property, platform).
type IdentityRow struct {
	PropertyID string
	Platform   domain.Platform
	Ref        string
	Status     string
	Note       string
	ResolvedAt time.Time
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Postgres)(nil)
)
