package resolve

import (
	"context"
	"fmt"
	"log"
	"time"

	"repscore-engine/internal/domain"
	"repscore-engine/internal/store"
)

// Finder turns a property into listing candidates on one platform.
// WebFinder and BrowserFinder implement it.
type Finder interface {
	Find(ctx context.Context, prop domain.Property, pl domain.Platform) ([]Candidate, error)
}

// IdentityStore is the slice of persistence the resolver needs.
type IdentityStore interface {
	GetIdentity(ctx context.Context, propertyID string, pl domain.Platform) (store.IdentityRow, bool, error)
	PutIdentity(ctx context.Context, row store.IdentityRow) error
}

// Resolver maps properties to platform listing URLs. Conclusive
// outcomes (a confident match, or an ambiguity parked for review) are
// cached; a plain no-match is not, so the next run looks again.
type Resolver struct {
	store  IdentityStore
	finder Finder
}

func New(st IdentityStore, finder Finder) *Resolver {
	return &Resolver{store: st, finder: finder}
}

// Cached reports a prior conclusive outcome. ok=false means the
// property needs a live lookup on that platform.
func (r *Resolver) Cached(ctx context.Context, prop domain.Property, pl domain.Platform) (domain.Identity, bool, error) {
	if r.store == nil {
		return domain.Identity{}, false, nil
	}
	row, ok, err := r.store.GetIdentity(ctx, prop.ID, pl)
	if err != nil {
		// unreadable cache is a miss, not a failure
		log.Printf("[resolve] identity cache read %s/%s: %v", prop.ID, pl, err)
		return domain.Identity{}, false, nil
	}
	if !ok {
		return domain.Identity{}, false, nil
	}
	switch row.Status {
	case store.IdentityNeedsReview:
		return domain.Identity{}, true, domain.Classedf(domain.ClassNeedsReview, pl, "parked for review: %s", row.Note)
	case store.IdentityResolved:
		if row.Ref == "" {
			return domain.Identity{}, false, nil
		}
		return domain.Identity{Property: prop, Platform: pl, Ref: row.Ref}, true, nil
	default:
		return domain.Identity{}, false, nil
	}
}

// Resolve performs a live search and match. The chosen listing (or a
// parked ambiguity) is written back to the identity cache.
func (r *Resolver) Resolve(ctx context.Context, prop domain.Property, pl domain.Platform) (domain.Identity, error) {
	if r.finder == nil {
		return domain.Identity{}, domain.Classedf(domain.ClassConfig, pl, "no finder configured")
	}

	cands, err := r.finder.Find(ctx, prop, pl)
	if err != nil {
		return domain.Identity{}, err
	}

	picked, err := PickCandidate(prop, pl, cands)
	if err != nil {
		if domain.ClassOf(err) == domain.ClassNeedsReview {
			r.putRow(ctx, store.IdentityRow{
				PropertyID: prop.ID,
				Platform:   pl,
				Status:     store.IdentityNeedsReview,
				Note:       err.Error(),
				ResolvedAt: time.Now().UTC(),
			})
		}
		return domain.Identity{}, err
	}

	r.putRow(ctx, store.IdentityRow{
		PropertyID: prop.ID,
		Platform:   pl,
		Ref:        picked.Ref,
		Status:     store.IdentityResolved,
		Note:       fmt.Sprintf("matched %q", picked.Name),
		ResolvedAt: time.Now().UTC(),
	})
	log.Printf("[resolve] %s/%s -> %s", prop.ID, pl, picked.Ref)
	return domain.Identity{Property: prop, Platform: pl, Ref: picked.Ref}, nil
}

func (r *Resolver) putRow(ctx context.Context, row store.IdentityRow) {
	if r.store == nil {
		return
	}
	if err := r.store.PutIdentity(ctx, row); err != nil {
		log.Printf("[resolve] identity cache write %s/%s: %v", row.PropertyID, row.Platform, err)
	}
}
