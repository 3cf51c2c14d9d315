package refresh

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum spacing between consecutive remote calls.
// The first Wait passes immediately; every later Wait blocks until the
// spacing since the previous call has elapsed. Nothing trails the last
// call, so the final unit of a run never pays the delay.
type Pacer struct {
	lim *rate.Limiter
}

func NewPacer(minDelay time.Duration) *Pacer {
	if minDelay <= 0 {
		return &Pacer{}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Every(minDelay), 1)}
}

func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.lim == nil {
		return ctx.Err()
	}
	return p.lim.Wait(ctx)
}
