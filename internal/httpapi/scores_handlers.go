package httpapi

import (
	"net/http"
	"strconv"

	"repscore-engine/internal/store"
)

type ScoresHandler struct {
	Store store.Store
}

// Latest returns the newest snapshot per (property, platform),
// optionally filtered to one property.
func (h ScoresHandler) Latest(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Store.LatestSnapshots(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if id := r.URL.Query().Get("property_id"); id != "" {
		filtered := snaps[:0]
		for _, s := range snaps {
			if s.PropertyID == id {
				filtered = append(filtered, s)
			}
		}
		snaps = filtered
	}
	writeJSON(w, toSnapshotDTOs(snaps))
}

func (h ScoresHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	snaps, err := h.Store.ListSnapshots(r.Context(), store.ListOpts{
		PropertyID: q.Get("property_id"),
		Platform:   q.Get("platform"),
		Limit:      limit,
	})
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, toSnapshotDTOs(snaps))
}

func (h ScoresHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	out := make([]runDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRunDTO(rec))
	}
	writeJSON(w, out)
}
