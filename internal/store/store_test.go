package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"repscore-engine/internal/domain"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func foundSnap(propID string, pl domain.Platform, raw float64, at time.Time) domain.Snapshot {
	norm := domain.NormalizeScore(raw, pl.Scale())
	count := 100
	return domain.Snapshot{
		PropertyID:  propID,
		Platform:    pl,
		Status:      domain.SnapFound,
		RawScore:    &raw,
		Scale:       pl.Scale(),
		ReviewCount: &count,
		Normalized:  &norm,
		CollectedAt: at,
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s := openTestDB(t)
	if err := s.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.InsertSnapshot(ctx, foundSnap("p1", domain.PlatformBooking, 8.2, at)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.ListSnapshots(ctx, ListOpts{PropertyID: "p1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows = %d, want 1", len(got))
	}
	snap := got[0]
	if snap.Platform != domain.PlatformBooking || snap.Status != domain.SnapFound {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.RawScore == nil || *snap.RawScore != 8.2 {
		t.Errorf("raw = %v, want 8.2", snap.RawScore)
	}
	if snap.Normalized == nil || *snap.Normalized != 8.2 {
		t.Errorf("normalized = %v, want 8.2", snap.Normalized)
	}
	if snap.ReviewCount == nil || *snap.ReviewCount != 100 {
		t.Errorf("reviewCount = %v", snap.ReviewCount)
	}
	if !snap.CollectedAt.Equal(at) {
		t.Errorf("collectedAt = %s, want %s", snap.CollectedAt, at)
	}
}

func TestNotListedSnapshotHasNullScores(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	snap := domain.Snapshot{
		PropertyID:  "p1",
		Platform:    domain.PlatformExpedia,
		Status:      domain.SnapNotListed,
		Scale:       10,
		CollectedAt: time.Now().UTC(),
	}
	if err := s.InsertSnapshot(ctx, snap); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := s.ListSnapshots(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got[0].RawScore != nil || got[0].Normalized != nil || got[0].ReviewCount != nil {
		t.Errorf("not_listed row carries scores: %+v", got[0])
	}
}

func TestLatestSnapshotsPicksNewest(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// three observations for one unit, one for another
	for i, raw := range []float64{7.0, 7.5, 8.0} {
		if err := s.InsertSnapshot(ctx, foundSnap("p1", domain.PlatformBooking, raw, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.InsertSnapshot(ctx, foundSnap("p1", domain.PlatformGoogle, 4.5, base)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.LatestSnapshots(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2 units", len(got))
	}
	for _, snap := range got {
		if snap.Platform == domain.PlatformBooking && *snap.RawScore != 8.0 {
			t.Errorf("booking latest raw = %v, want 8.0", *snap.RawScore)
		}
		if snap.Platform == domain.PlatformGoogle && *snap.Normalized != 9.0 {
			t.Errorf("google normalized = %v, want 9.0", *snap.Normalized)
		}
	}
}

func TestListSnapshotsFilters(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = s.InsertSnapshot(ctx, foundSnap("p1", domain.PlatformBooking, 8.0, now))
	_ = s.InsertSnapshot(ctx, foundSnap("p2", domain.PlatformBooking, 7.0, now))
	_ = s.InsertSnapshot(ctx, foundSnap("p1", domain.PlatformGoogle, 4.0, now))

	got, err := s.ListSnapshots(ctx, ListOpts{PropertyID: "p1", Platform: "booking"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].PropertyID != "p1" || got[0].Platform != domain.PlatformBooking {
		t.Errorf("filtered rows = %+v", got)
	}
}

func TestIdentityCache(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	if _, ok, err := s.GetIdentity(ctx, "p1", domain.PlatformTripadvisor); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	row := IdentityRow{
		PropertyID: "p1",
		Platform:   domain.PlatformTripadvisor,
		Ref:        "https://www.tripadvisor.com/Hotel_Review-g1-d2",
		Status:     IdentityResolved,
		ResolvedAt: time.Now().UTC(),
	}
	if err := s.PutIdentity(ctx, row); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := s.GetIdentity(ctx, "p1", domain.PlatformTripadvisor)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Ref != row.Ref || got.Status != IdentityResolved {
		t.Errorf("row = %+v", got)
	}

	// upsert overwrites
	row.Status = IdentityNeedsReview
	row.Note = "two close matches"
	row.Ref = ""
	if err := s.PutIdentity(ctx, row); err != nil {
		t.Fatalf("put again: %v", err)
	}
	got, _, _ = s.GetIdentity(ctx, "p1", domain.PlatformTripadvisor)
	if got.Status != IdentityNeedsReview || got.Note == "" || got.Ref != "" {
		t.Errorf("after upsert = %+v", got)
	}
}

func TestRunHistory(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := domain.RunRecord{RunID: "run-a", Trigger: domain.TriggerManual, StartedAt: start}
	second := domain.RunRecord{RunID: "run-b", Trigger: domain.TriggerRetry, StartedAt: start.Add(time.Hour)}
	if err := s.InsertRun(ctx, first); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if err := s.InsertRun(ctx, second); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	fin := start.Add(30 * time.Minute)
	first.FinishedAt = &fin
	first.Complete = 10
	first.Failed = 2
	if err := s.FinishRun(ctx, first); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].RunID != "run-b" {
		t.Errorf("newest first, got %s", runs[0].RunID)
	}
	if runs[1].FinishedAt == nil || runs[1].Complete != 10 || runs[1].Failed != 2 {
		t.Errorf("finished run = %+v", runs[1])
	}
	if runs[0].FinishedAt != nil {
		t.Error("unfinished run should have nil FinishedAt")
	}
}
