package voice

import (
	"sync"
	"testing"
	"time"
)

type staticLevel struct {
	mu    sync.Mutex
	level float64
}

func (s *staticLevel) Level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *staticLevel) set(l float64) {
	s.mu.Lock()
	s.level = l
	s.mu.Unlock()
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []SpeakingEvent
}

func (r *changeRecorder) record(side Side, speaking bool) {
	r.mu.Lock()
	r.changes = append(r.changes, SpeakingEvent{Side: side, Speaking: speaking})
	r.mu.Unlock()
}

func (r *changeRecorder) all() []SpeakingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SpeakingEvent(nil), r.changes...)
}

func TestDetectorTransitionsOnly(t *testing.T) {
	local := &staticLevel{}
	rec := &changeRecorder{}
	d := NewDetector(DetectorConfig{
		Interval:  time.Hour, // sample driven by hand
		Threshold: 0.02,
		Local:     local,
		OnChange:  rec.record,
	})

	// Below threshold: silent, and already silent, so no callback.
	local.set(0.01)
	d.sample()
	d.sample()
	if got := rec.all(); len(got) != 0 {
		t.Fatalf("changes = %v, want none", got)
	}

	// Crossing up fires exactly once even across repeated samples.
	local.set(0.5)
	d.sample()
	d.sample()
	d.sample()
	got := rec.all()
	if len(got) != 1 || got[0] != (SpeakingEvent{Side: SideLocal, Speaking: true}) {
		t.Fatalf("changes = %v, want one local speaking=true", got)
	}
	if !d.Speaking(SideLocal) {
		t.Fatal("Speaking(local) = false after loud samples")
	}

	// Crossing back down fires once more.
	local.set(0.0)
	d.sample()
	d.sample()
	got = rec.all()
	if len(got) != 2 || got[1] != (SpeakingEvent{Side: SideLocal, Speaking: false}) {
		t.Fatalf("changes = %v, want trailing speaking=false", got)
	}
}

func TestDetectorThresholdBoundary(t *testing.T) {
	local := &staticLevel{}
	rec := &changeRecorder{}
	d := NewDetector(DetectorConfig{
		Threshold: 0.02,
		Local:     local,
		OnChange:  rec.record,
	})

	// Exactly at threshold is not speaking; strictly above is.
	local.set(0.02)
	d.sample()
	if d.Speaking(SideLocal) {
		t.Fatal("level == threshold reported speaking")
	}
	local.set(0.021)
	d.sample()
	if !d.Speaking(SideLocal) {
		t.Fatal("level just above threshold not reported speaking")
	}
}

func TestDetectorMuteGatesLocal(t *testing.T) {
	local := &staticLevel{}
	remote := &staticLevel{}
	rec := &changeRecorder{}
	muted := true
	d := NewDetector(DetectorConfig{
		Threshold: 0.02,
		Local:     local,
		Remote:    remote,
		Muted:     func() bool { return muted },
		OnChange:  rec.record,
	})

	// A loud but muted microphone never reports local speaking.
	local.set(0.9)
	remote.set(0.9)
	d.sample()
	if d.Speaking(SideLocal) {
		t.Fatal("muted microphone reported speaking")
	}
	// The remote side is unaffected by the local mute.
	if !d.Speaking(SideRemote) {
		t.Fatal("remote speaking suppressed by local mute")
	}

	muted = false
	d.sample()
	if !d.Speaking(SideLocal) {
		t.Fatal("unmuted loud microphone not reported speaking")
	}
}

func TestDetectorStopReportsSilence(t *testing.T) {
	local := &staticLevel{level: 0.9}
	rec := &changeRecorder{}
	d := NewDetector(DetectorConfig{
		Threshold: 0.02,
		Local:     local,
		OnChange:  rec.record,
	})
	d.sample()
	if !d.Speaking(SideLocal) {
		t.Fatal("precondition: expected speaking")
	}

	d.Stop()
	d.Stop() // idempotent

	if d.Speaking(SideLocal) {
		t.Fatal("Speaking(local) = true after Stop")
	}
	got := rec.all()
	if len(got) == 0 || got[len(got)-1] != (SpeakingEvent{Side: SideLocal, Speaking: false}) {
		t.Fatalf("changes = %v, want trailing speaking=false", got)
	}
}

func TestDetectorDefaults(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	if d.cfg.Interval != 100*time.Millisecond {
		t.Fatalf("default interval = %v", d.cfg.Interval)
	}
	if d.cfg.Threshold != 0.02 {
		t.Fatalf("default threshold = %v", d.cfg.Threshold)
	}
}
