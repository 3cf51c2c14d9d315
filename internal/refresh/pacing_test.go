package refresh

import (
	"context"
	"testing"
	"time"
)

func TestPacerFirstCallImmediate(t *testing.T) {
	p := NewPacer(200 * time.Millisecond)
	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if el := time.Since(start); el > 50*time.Millisecond {
		t.Errorf("first Wait took %s, want immediate", el)
	}
}

func TestPacerSpacesCalls(t *testing.T) {
	p := NewPacer(60 * time.Millisecond)
	_ = p.Wait(context.Background())
	start := time.Now()
	_ = p.Wait(context.Background())
	if el := time.Since(start); el < 40*time.Millisecond {
		t.Errorf("second Wait returned after %s, want >= ~60ms spacing", el)
	}
}

func TestPacerZeroDelayNoOp(t *testing.T) {
	p := NewPacer(0)
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if el := time.Since(start); el > 20*time.Millisecond {
		t.Errorf("no-op pacer took %s", el)
	}
}

func TestPacerCancelDuringWait(t *testing.T) {
	p := NewPacer(time.Second)
	_ = p.Wait(context.Background())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := p.Wait(ctx); err == nil {
		t.Error("Wait should surface cancellation while pacing")
	}
}

func TestPacerNilSafe(t *testing.T) {
	var p *Pacer
	if err := p.Wait(context.Background()); err != nil {
		t.Errorf("nil pacer Wait: %v", err)
	}
}
