package httpapi

import (
	"database/sql"
	"sync/atomic"
	"time"

	"repscore-engine/internal/config"
	"repscore-engine/internal/domain"
	"repscore-engine/internal/events"
	"repscore-engine/internal/store"
)

// Refresher is the slice of the refresh engine the API touches.
// *refresh.Engine satisfies it; tests substitute a fake.
type Refresher interface {
	Start(props []domain.Property, platforms []domain.Platform, trigger domain.Trigger) (domain.RunHandle, error)
	RetryAllFailed() error
	RetryUnit(propertyID string, pl domain.Platform) error
	Cancel()
	Running() bool
	Phase() domain.RunPhase
	RunID() string
	CurrentPlatform() (domain.Platform, bool)
	GetSummary() domain.RunSummary
	Units() []domain.UnitState
}

type Deps struct {
	Engine Refresher
	Store  store.Store
	Hub    *events.Hub

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Set only on the sqlite backend; enables /api/db/checkpoint.
	SQLiteDB *sql.DB

	Version   string
	StartedAt time.Time
}
