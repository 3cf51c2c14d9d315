package schedule

import (
	"sync/atomic"
	"testing"

	"repscore-engine/internal/config"
	"repscore-engine/internal/domain"
	"repscore-engine/internal/refresh"
)

func TestParseDailyAt(t *testing.T) {
	tests := []struct{ in, want string }{
		{"06:30", "30 6 * * *"},
		{"02:00", "0 2 * * *"},
		{"2:05", "5 2 * * *"},
		{"23:59", "59 23 * * *"},
		{"25:00", "30 6 * * *"},
		{"12:75", "30 6 * * *"},
		{"garbage", "30 6 * * *"},
		{"", "30 6 * * *"},
	}
	for _, tc := range tests {
		if got := parseDailyAt(tc.in); got != tc.want {
			t.Errorf("parseDailyAt(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

type recordingStarter struct {
	props     []domain.Property
	platforms []domain.Platform
	trigger   domain.Trigger
	calls     int
	err       error
}

func (r *recordingStarter) Start(props []domain.Property, platforms []domain.Platform, trigger domain.Trigger) (domain.RunHandle, error) {
	r.props = props
	r.platforms = platforms
	r.trigger = trigger
	r.calls++
	if r.err != nil {
		return domain.RunHandle{}, r.err
	}
	return domain.RunHandle{RunID: "run-sched"}, nil
}

func scheduledConfig() *atomic.Value {
	cfg := config.Defaults()
	cfg.Schedule.Enabled = true
	cfg.Schedule.DailyAt = "06:30"
	cfg.Properties = []config.PropertyConfig{
		{ID: "p1", Name: "Hotel Aurora"},
		{ID: "p2", Name: "Lakeside Inn"},
	}
	v := &atomic.Value{}
	v.Store(cfg)
	return v
}

func TestFireStartsFullRefresh(t *testing.T) {
	eng := &recordingStarter{}
	s := New(eng, scheduledConfig())

	s.fire()

	if eng.calls != 1 {
		t.Fatalf("calls = %d", eng.calls)
	}
	if eng.trigger != domain.TriggerSchedule {
		t.Errorf("trigger = %s", eng.trigger)
	}
	if len(eng.props) != 2 {
		t.Errorf("props = %d, want all configured", len(eng.props))
	}
	if len(eng.platforms) != 4 {
		t.Errorf("platforms = %d, want all enabled", len(eng.platforms))
	}
}

func TestFireToleratesActiveRun(t *testing.T) {
	eng := &recordingStarter{err: refresh.ErrRunActive}
	s := New(eng, scheduledConfig())

	// Must not panic or retry; the next cron tick tries again.
	s.fire()
	if eng.calls != 1 {
		t.Fatalf("calls = %d", eng.calls)
	}
}

func TestStartDisabledIsNoOp(t *testing.T) {
	cfg := config.Defaults()
	v := &atomic.Value{}
	v.Store(cfg)

	s := New(&recordingStarter{}, v)
	if err := s.Start(); err != nil {
		t.Fatalf("disabled start: %v", err)
	}
	if s.running {
		t.Error("cron loop should not run when disabled")
	}
	s.Stop()
}
