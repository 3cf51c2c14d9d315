package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"repscore-engine/internal/domain"
	"repscore-engine/internal/store"
)

type fakeIdentityStore struct {
	rows    map[string]store.IdentityRow
	getErr  error
	putErr  error
	putTook int
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{rows: make(map[string]store.IdentityRow)}
}

func idKey(propID string, pl domain.Platform) string { return propID + "/" + string(pl) }

func (f *fakeIdentityStore) GetIdentity(ctx context.Context, propertyID string, pl domain.Platform) (store.IdentityRow, bool, error) {
	if f.getErr != nil {
		return store.IdentityRow{}, false, f.getErr
	}
	row, ok := f.rows[idKey(propertyID, pl)]
	return row, ok, nil
}

func (f *fakeIdentityStore) PutIdentity(ctx context.Context, row store.IdentityRow) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.putTook++
	f.rows[idKey(row.PropertyID, row.Platform)] = row
	return nil
}

type fakeFinder struct {
	cands []Candidate
	err   error
	calls int
}

func (f *fakeFinder) Find(ctx context.Context, prop domain.Property, pl domain.Platform) ([]Candidate, error) {
	f.calls++
	return f.cands, f.err
}

func TestResolveCachesMatch(t *testing.T) {
	st := newFakeIdentityStore()
	finder := &fakeFinder{cands: []Candidate{{Name: "The Driskill Hotel", Ref: "https://www.booking.com/hotel/us/driskill.html"}}}
	r := New(st, finder)

	prop := domain.Property{ID: "p1", Name: "Driskill Hotel"}
	id, err := r.Resolve(context.Background(), prop, domain.PlatformBooking)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.Ref != "https://www.booking.com/hotel/us/driskill.html" {
		t.Errorf("ref = %q", id.Ref)
	}

	row, ok := st.rows[idKey("p1", domain.PlatformBooking)]
	if !ok || row.Status != store.IdentityResolved || row.Ref != id.Ref {
		t.Errorf("cached row = %+v", row)
	}
}

func TestResolveParksAmbiguity(t *testing.T) {
	st := newFakeIdentityStore()
	finder := &fakeFinder{cands: []Candidate{
		{Name: "Grand Hotel Downtown", Ref: "https://x/1"},
		{Name: "Grand Hotel Riverside", Ref: "https://x/2"},
	}}
	r := New(st, finder)

	_, err := r.Resolve(context.Background(), domain.Property{ID: "p1", Name: "Grand Hotel"}, domain.PlatformTripadvisor)
	if domain.ClassOf(err) != domain.ClassNeedsReview {
		t.Fatalf("class = %s, want NEEDS_REVIEW", domain.ClassOf(err))
	}
	row, ok := st.rows[idKey("p1", domain.PlatformTripadvisor)]
	if !ok || row.Status != store.IdentityNeedsReview || row.Note == "" {
		t.Errorf("parked row = %+v", row)
	}
}

func TestResolveNoMatchNotCached(t *testing.T) {
	st := newFakeIdentityStore()
	finder := &fakeFinder{cands: []Candidate{{Name: "Completely Different Inn", Ref: "https://x/1"}}}
	r := New(st, finder)

	_, err := r.Resolve(context.Background(), domain.Property{ID: "p1", Name: "Driskill Hotel"}, domain.PlatformExpedia)
	if domain.ClassOf(err) != domain.ClassNoIdentity {
		t.Fatalf("class = %s, want NO_IDENTITY", domain.ClassOf(err))
	}
	if len(st.rows) != 0 {
		t.Errorf("no-match outcome should not be cached, got %+v", st.rows)
	}
}

func TestResolvePassesThroughFinderErrors(t *testing.T) {
	st := newFakeIdentityStore()
	finder := &fakeFinder{err: domain.Classedf(domain.ClassRateLimited, domain.PlatformBooking, "429")}
	r := New(st, finder)

	_, err := r.Resolve(context.Background(), domain.Property{ID: "p1", Name: "X"}, domain.PlatformBooking)
	if domain.ClassOf(err) != domain.ClassRateLimited {
		t.Errorf("class = %s, want RATE_LIMITED", domain.ClassOf(err))
	}
	if len(st.rows) != 0 {
		t.Error("transient failures must not be cached")
	}
}

func TestCachedResolvedRow(t *testing.T) {
	st := newFakeIdentityStore()
	st.rows[idKey("p1", domain.PlatformBooking)] = store.IdentityRow{
		PropertyID: "p1",
		Platform:   domain.PlatformBooking,
		Ref:        "https://www.booking.com/hotel/us/driskill.html",
		Status:     store.IdentityResolved,
		ResolvedAt: time.Now().UTC(),
	}
	r := New(st, &fakeFinder{})

	prop := domain.Property{ID: "p1", Name: "Driskill Hotel"}
	id, ok, err := r.Cached(context.Background(), prop, domain.PlatformBooking)
	if !ok || err != nil {
		t.Fatalf("Cached: ok=%v err=%v", ok, err)
	}
	if id.Ref == "" || id.Platform != domain.PlatformBooking {
		t.Errorf("identity = %+v", id)
	}
}

func TestCachedNeedsReviewRow(t *testing.T) {
	st := newFakeIdentityStore()
	st.rows[idKey("p1", domain.PlatformBooking)] = store.IdentityRow{
		PropertyID: "p1",
		Platform:   domain.PlatformBooking,
		Status:     store.IdentityNeedsReview,
		Note:       "two close matches",
		ResolvedAt: time.Now().UTC(),
	}
	finder := &fakeFinder{}
	r := New(st, finder)

	_, ok, err := r.Cached(context.Background(), domain.Property{ID: "p1", Name: "X"}, domain.PlatformBooking)
	if !ok {
		t.Fatal("parked row should be a conclusive cache hit")
	}
	if domain.ClassOf(err) != domain.ClassNeedsReview {
		t.Errorf("class = %s, want NEEDS_REVIEW", domain.ClassOf(err))
	}
	if finder.calls != 0 {
		t.Error("Cached must not hit the finder")
	}
}

func TestCachedMissAndReadError(t *testing.T) {
	st := newFakeIdentityStore()
	r := New(st, &fakeFinder{})

	if _, ok, err := r.Cached(context.Background(), domain.Property{ID: "p1"}, domain.PlatformBooking); ok || err != nil {
		t.Errorf("empty cache: ok=%v err=%v", ok, err)
	}

	st.getErr = errors.New("db locked")
	if _, ok, err := r.Cached(context.Background(), domain.Property{ID: "p1"}, domain.PlatformBooking); ok || err != nil {
		t.Errorf("unreadable cache should read as a miss: ok=%v err=%v", ok, err)
	}
}
