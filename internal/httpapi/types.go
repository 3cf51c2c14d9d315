package httpapi

import (
	"time"

	"repscore-engine/internal/domain"
)

// Wire DTOs. Times travel as RFC3339 strings; optional numbers as
// pointers so not-listed snapshots serialize without fake zeros.

type unitDTO struct {
	PropertyID string `json:"property_id"`
	Platform   string `json:"platform"`
	Status     string `json:"status"`
	ErrorClass string `json:"error_class,omitempty"`
	ErrorMsg   string `json:"error_msg,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	RetryCount int    `json:"retry_count"`
}

func toUnitDTO(u domain.UnitState) unitDTO {
	d := unitDTO{
		PropertyID: u.Key.PropertyID,
		Platform:   string(u.Key.Platform),
		Status:     string(u.Status),
		ErrorClass: string(u.ErrorClass),
		ErrorMsg:   u.ErrorMsg,
		RetryCount: u.RetryCount,
	}
	if u.StartedAt != nil {
		d.StartedAt = u.StartedAt.Format(time.RFC3339)
	}
	return d
}

func toUnitDTOs(units []domain.UnitState) []unitDTO {
	out := make([]unitDTO, 0, len(units))
	for _, u := range units {
		out = append(out, toUnitDTO(u))
	}
	return out
}

type summaryDTO struct {
	Complete   int `json:"complete"`
	NotListed  int `json:"not_listed"`
	Failed     int `json:"failed"`
	Queued     int `json:"queued"`
	InProgress int `json:"in_progress"`
	Total      int `json:"total"`
	Settled    int `json:"settled"`
}

func toSummaryDTO(s domain.RunSummary) summaryDTO {
	return summaryDTO{
		Complete:   s.Complete,
		NotListed:  s.NotListed,
		Failed:     s.Failed,
		Queued:     s.Queued,
		InProgress: s.InProgress,
		Total:      s.Total,
		Settled:    s.Settled(),
	}
}

type snapshotDTO struct {
	ID          int64    `json:"id"`
	PropertyID  string   `json:"property_id"`
	Platform    string   `json:"platform"`
	Status      string   `json:"status"`
	RawScore    *float64 `json:"raw_score,omitempty"`
	Scale       int      `json:"scale"`
	ReviewCount *int     `json:"review_count,omitempty"`
	Normalized  *float64 `json:"normalized,omitempty"`
	CollectedAt string   `json:"collected_at"`
}

func toSnapshotDTO(s domain.Snapshot) snapshotDTO {
	return snapshotDTO{
		ID:          s.ID,
		PropertyID:  s.PropertyID,
		Platform:    string(s.Platform),
		Status:      string(s.Status),
		RawScore:    s.RawScore,
		Scale:       s.Scale,
		ReviewCount: s.ReviewCount,
		Normalized:  s.Normalized,
		CollectedAt: s.CollectedAt.Format(time.RFC3339),
	}
}

func toSnapshotDTOs(snaps []domain.Snapshot) []snapshotDTO {
	out := make([]snapshotDTO, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toSnapshotDTO(s))
	}
	return out
}

type runDTO struct {
	RunID      string `json:"run_id"`
	Trigger    string `json:"trigger"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Complete   int    `json:"complete"`
	NotListed  int    `json:"not_listed"`
	Failed     int    `json:"failed"`
	Queued     int    `json:"queued"`
	Canceled   bool   `json:"canceled"`
}

func toRunDTO(rec domain.RunRecord) runDTO {
	d := runDTO{
		RunID:     rec.RunID,
		Trigger:   string(rec.Trigger),
		StartedAt: rec.StartedAt.Format(time.RFC3339),
		Complete:  rec.Complete,
		NotListed: rec.NotListed,
		Failed:    rec.Failed,
		Queued:    rec.Queued,
		Canceled:  rec.Canceled,
	}
	if rec.FinishedAt != nil {
		d.FinishedAt = rec.FinishedAt.Format(time.RFC3339)
	}
	return d
}
