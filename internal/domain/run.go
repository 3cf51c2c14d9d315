package domain

import "time"

type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
	TriggerAlert    Trigger = "alert"
	TriggerRetry    Trigger = "retry"
)

// RunHandle is returned by Start before the run's worker begins.
type RunHandle struct {
	RunID     string
	StartedAt time.Time
}

// RunRecord is one row of run history.
type RunRecord struct {
	RunID      string
	Trigger    Trigger
	StartedAt  time.Time
	FinishedAt *time.Time
	Complete   int
	NotListed  int
	Failed     int
	Queued     int
	Canceled   bool
}
