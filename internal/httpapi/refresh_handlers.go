package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"repscore-engine/internal/config"
	"repscore-engine/internal/domain"
	"repscore-engine/internal/refresh"
)

type RefreshHandler struct {
	Engine Refresher
	CfgVal *atomic.Value // stores config.Config
}

type startRefreshReq struct {
	PropertyIDs []string `json:"property_ids"`
	Platforms   []string `json:"platforms"`
	All         bool     `json:"all"`
}

func (h RefreshHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRefreshReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), 400)
			return
		}
	}

	cfg := h.CfgVal.Load().(config.Config)
	props := cfg.DomainProperties()
	if len(req.PropertyIDs) > 0 && !req.All {
		byID := make(map[string]domain.Property, len(props))
		for _, p := range props {
			byID[p.ID] = p
		}
		picked := make([]domain.Property, 0, len(req.PropertyIDs))
		for _, id := range req.PropertyIDs {
			p, ok := byID[id]
			if !ok {
				WriteError(w, r, http.StatusBadRequest, "unknown_property", "no configured property "+id)
				return
			}
			picked = append(picked, p)
		}
		props = picked
	}

	platforms, err := requestedPlatforms(req.Platforms, cfg)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_platform", err.Error())
		return
	}

	handle, err := h.Engine.Start(props, platforms, domain.TriggerManual)
	switch {
	case errors.Is(err, refresh.ErrRunActive):
		WriteError(w, r, http.StatusConflict, "run_active", "a refresh run is already in progress")
		return
	case errors.Is(err, refresh.ErrNoProperties):
		WriteError(w, r, http.StatusBadRequest, "no_properties", "no properties to refresh")
		return
	case err != nil:
		WriteError(w, r, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]any{
		"run_id":     handle.RunID,
		"started_at": handle.StartedAt.Format(time.RFC3339),
	})
}

// requestedPlatforms parses an explicit platform list, defaulting to
// the configured enabled set.
func requestedPlatforms(names []string, cfg config.Config) ([]domain.Platform, error) {
	if len(names) == 0 {
		return cfg.EnabledPlatforms(), nil
	}
	out := make([]domain.Platform, 0, len(names))
	for _, name := range names {
		pl, err := domain.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, nil
}

func (h RefreshHandler) Status(w http.ResponseWriter, r *http.Request) {
	cur, _ := h.Engine.CurrentPlatform()
	writeJSON(w, map[string]any{
		"running":          h.Engine.Running(),
		"run_id":           h.Engine.RunID(),
		"phase":            string(h.Engine.Phase()),
		"current_platform": string(cur),
		"summary":          toSummaryDTO(h.Engine.GetSummary()),
		"units":            toUnitDTOs(h.Engine.Units()),
	})
}

func (h RefreshHandler) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, toSummaryDTO(h.Engine.GetSummary()))
}

func (h RefreshHandler) Units(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, toUnitDTOs(h.Engine.Units()))
}

type retryUnitReq struct {
	PropertyID string `json:"property_id"`
	Platform   string `json:"platform"`
}

func (h RefreshHandler) RetryUnit(w http.ResponseWriter, r *http.Request) {
	var req retryUnitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), 400)
		return
	}
	pl, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_platform", err.Error())
		return
	}

	err = h.Engine.RetryUnit(req.PropertyID, pl)
	switch {
	case errors.Is(err, refresh.ErrRunActive):
		WriteError(w, r, http.StatusConflict, "run_active", "a refresh run is already in progress")
	case errors.Is(err, refresh.ErrUnknownUnit):
		WriteError(w, r, http.StatusNotFound, "unknown_unit", "no such unit in the last run")
	case err != nil:
		WriteError(w, r, http.StatusInternalServerError, "retry_failed", err.Error())
	default:
		WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}

func (h RefreshHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	requeued := h.Engine.GetSummary().Failed

	err := h.Engine.RetryAllFailed()
	switch {
	case errors.Is(err, refresh.ErrRunActive):
		WriteError(w, r, http.StatusConflict, "run_active", "a refresh run is already in progress")
	case errors.Is(err, refresh.ErrNothingToRetry):
		WriteError(w, r, http.StatusConflict, "nothing_to_retry", "no failed units to retry")
	case err != nil:
		WriteError(w, r, http.StatusInternalServerError, "retry_failed", err.Error())
	default:
		WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "requeued": requeued})
	}
}

// Cancel is idempotent: canceling an idle engine is a no-op.
func (h RefreshHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.Engine.Cancel()
	writeJSON(w, map[string]any{"ok": true})
}
