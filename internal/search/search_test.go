package search

import (
	"testing"
	"time"

	"repscore-engine/internal/domain"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestBuildDocsMergesLatestSnapshots(t *testing.T) {
	props := []domain.Property{
		{ID: "p1", Name: "Hotel Aurora", City: "Denver", State: "CO"},
		{ID: "p2", Name: "Lakeside Inn"},
	}
	older := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	latest := []domain.Snapshot{
		{PropertyID: "p1", Platform: domain.PlatformGoogle, Status: domain.SnapFound,
			Normalized: fptr(9.0), ReviewCount: iptr(120), CollectedAt: older},
		{PropertyID: "p1", Platform: domain.PlatformBooking, Status: domain.SnapFound,
			Normalized: fptr(8.5), ReviewCount: iptr(44), CollectedAt: newer},
		{PropertyID: "p1", Platform: domain.PlatformExpedia, Status: domain.SnapNotListed,
			CollectedAt: newer},
	}

	docs := BuildDocs(props, latest)
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}

	d := docs[0]
	if d["id"] != "p1" || d["name"] != "Hotel Aurora" {
		t.Fatalf("identity fields wrong: %v", d)
	}
	if d["city"] != "Denver" || d["state"] != "CO" {
		t.Fatalf("location fields wrong: %v", d)
	}
	if got := d["score_google"]; got != 9.0 {
		t.Errorf("score_google = %v, want 9", got)
	}
	if got := d["reviews_booking"]; got != 44 {
		t.Errorf("reviews_booking = %v, want 44", got)
	}
	if _, ok := d["score_expedia"]; ok {
		t.Error("not_listed snapshot must not produce a score field")
	}
	if got := d["overall"]; got != 8.75 {
		t.Errorf("overall = %v, want 8.75", got)
	}
	if got := d["updated_at"]; got != "2026-03-02T09:30:00Z" {
		t.Errorf("updated_at = %v, want newest snapshot time", got)
	}
}

func TestBuildDocsPropertyWithoutSnapshots(t *testing.T) {
	docs := BuildDocs([]domain.Property{{ID: "p9", Name: "New Place"}}, nil)
	if len(docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(docs))
	}
	d := docs[0]
	if _, ok := d["overall"]; ok {
		t.Error("no snapshots must mean no overall")
	}
	if _, ok := d["updated_at"]; ok {
		t.Error("no snapshots must mean no updated_at")
	}
	if _, ok := d["city"]; ok {
		t.Error("empty city must be omitted")
	}
}

func TestBuildDocsNotListedStillRefreshesTimestamp(t *testing.T) {
	at := time.Date(2026, 4, 5, 12, 0, 0, 0, time.UTC)
	docs := BuildDocs(
		[]domain.Property{{ID: "p1", Name: "Hotel Aurora"}},
		[]domain.Snapshot{{PropertyID: "p1", Platform: domain.PlatformGoogle,
			Status: domain.SnapNotListed, CollectedAt: at}},
	)
	if got := docs[0]["updated_at"]; got != "2026-04-05T12:00:00Z" {
		t.Errorf("updated_at = %v, want not_listed collection time", got)
	}
	if _, ok := docs[0]["overall"]; ok {
		t.Error("not_listed only must not produce overall")
	}
}
