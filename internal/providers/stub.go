package providers

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"repscore-engine/internal/domain"
)

// Stub serves deterministic fake ratings so the engine can run with no
// credentials. The score derives from the property ID and platform, so
// repeated runs agree.
type Stub struct {
	platform domain.Platform
	Latency  time.Duration
}

func NewStub(pl domain.Platform) *Stub {
	return &Stub{platform: pl}
}

func (s *Stub) Platform() domain.Platform { return s.platform }

func (s *Stub) Fetch(ctx context.Context, id domain.Identity) (domain.RatingResult, error) {
	if s.Latency > 0 {
		time.Sleep(s.Latency)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(id.Property.ID))
	_, _ = h.Write([]byte(s.platform))
	n := h.Sum32()

	scale := s.platform.Scale()
	frac := 0.35 + float64(n%60)/100 // 0.35 .. 0.94 of the scale
	raw := math.Round(frac*float64(scale)*10) / 10

	return domain.RatingResult{
		Platform:    s.platform,
		RawScore:    raw,
		Scale:       scale,
		ReviewCount: int(20 + n%980),
		DisplayName: id.Property.Name,
	}, nil
}
