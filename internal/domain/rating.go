package domain

import (
	"math"
	"time"
)

// RatingResult is the output of one successful provider fetch.
type RatingResult struct {
	Platform    Platform
	RawScore    float64
	Scale       int
	ReviewCount int
	DisplayName string // name as reported by the platform
}

func (r RatingResult) Normalized() float64 {
	return NormalizeScore(r.RawScore, r.Scale)
}

// NormalizeScore maps a platform-native score onto the shared 0-10
// scale, rounded to two decimals.
func NormalizeScore(raw float64, scale int) float64 {
	v := raw
	if scale != 10 {
		v = raw / float64(scale) * 10
	}
	return math.Round(v*100) / 100
}

type SnapStatus string

const (
	SnapFound     SnapStatus = "found"
	SnapNotListed SnapStatus = "not_listed"
)

// Snapshot is one immutable rating observation. Snapshots are only
// appended; readers take the latest per (property, platform).
type Snapshot struct {
	ID          int64
	PropertyID  string
	Platform    Platform
	Status      SnapStatus
	RawScore    *float64 // nil when not listed
	Scale       int
	ReviewCount *int
	Normalized  *float64
	CollectedAt time.Time
}
