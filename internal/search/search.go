package search

import (
	"log"
	"math"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"repscore-engine/internal/domain"
)

// Sink pushes per-property score documents into a Meilisearch index so
// a dashboard can search and filter them. Entirely optional; callers
// treat every error as log-only.
type Sink struct {
	client *meilisearch.Client
	index  string
}

func New(host, apiKey, index string) *Sink {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	if index == "" {
		index = "properties"
	}
	return &Sink{client: client, index: index}
}

// InitIndex creates the index and its attribute settings.
func (s *Sink) InitIndex() error {
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && err.Error() != "index already exists" {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"name",
		"city",
		"state",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"id",
		"city",
		"state",
		"overall",
		"score_google",
		"score_tripadvisor",
		"score_booking",
		"score_expedia",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"overall",
		"updated_at",
	})
	return err
}

// IndexScores upserts one document per property, embedding the latest
// normalized score and review count per platform.
func (s *Sink) IndexScores(props []domain.Property, latest []domain.Snapshot) error {
	docs := BuildDocs(props, latest)
	if len(docs) == 0 {
		return nil
	}
	_, err := s.client.Index(s.index).AddDocuments(docs)
	if err != nil {
		return err
	}
	log.Printf("[search] indexed %d properties", len(docs))
	return nil
}

// BuildDocs merges properties with their newest snapshots into flat
// documents. Not-listed snapshots contribute freshness but no score;
// overall is the mean of the normalized scores that exist.
func BuildDocs(props []domain.Property, latest []domain.Snapshot) []map[string]any {
	byProp := make(map[string][]domain.Snapshot)
	for _, snap := range latest {
		byProp[snap.PropertyID] = append(byProp[snap.PropertyID], snap)
	}

	docs := make([]map[string]any, 0, len(props))
	for _, p := range props {
		d := map[string]any{
			"id":   p.ID,
			"name": p.Name,
		}
		if p.City != "" {
			d["city"] = p.City
		}
		if p.State != "" {
			d["state"] = p.State
		}

		var sum float64
		var scored int
		var newest time.Time
		for _, snap := range byProp[p.ID] {
			if snap.CollectedAt.After(newest) {
				newest = snap.CollectedAt
			}
			if snap.Status != domain.SnapFound || snap.Normalized == nil {
				continue
			}
			d["score_"+string(snap.Platform)] = *snap.Normalized
			if snap.ReviewCount != nil {
				d["reviews_"+string(snap.Platform)] = *snap.ReviewCount
			}
			sum += *snap.Normalized
			scored++
		}
		if scored > 0 {
			d["overall"] = math.Round(sum/float64(scored)*100) / 100
		}
		if !newest.IsZero() {
			d["updated_at"] = newest.UTC().Format(time.RFC3339)
		}
		docs = append(docs, d)
	}
	return docs
}
