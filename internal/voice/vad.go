package voice

import (
	"sync"
	"time"
)

// Side identifies whose audio a speaking transition belongs to.
type Side int

const (
	SideLocal Side = iota
	SideRemote
)

func (s Side) String() string {
	if s == SideLocal {
		return "local"
	}
	return "remote"
}

// DetectorConfig wires a Detector. Muted gates the local side: a muted
// microphone never reports speaking, whatever the input level.
type DetectorConfig struct {
	Interval  time.Duration
	Threshold float64
	Local     LevelSource
	Remote    LevelSource
	Muted     func() bool
	OnChange  func(side Side, speaking bool)
}

// Detector samples both audio sides on a fixed interval and raises a
// callback only on speaking/not-speaking transitions, not on every sample.
type Detector struct {
	cfg DetectorConfig

	mu       sync.Mutex
	speaking map[Side]bool
	stop     chan struct{}
	stopped  bool
}

func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.02
	}
	return &Detector{
		cfg:      cfg,
		speaking: make(map[Side]bool),
		stop:     make(chan struct{}),
	}
}

func (d *Detector) Start() {
	go func() {
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-ticker.C:
				d.sample()
			}
		}
	}()
}

// Stop halts sampling and reports both sides silent. Idempotent.
func (d *Detector) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stop)
	d.mu.Unlock()

	d.transition(SideLocal, false)
	d.transition(SideRemote, false)
}

// sample runs one detection pass over both sides.
func (d *Detector) sample() {
	if d.cfg.Local != nil {
		speaking := d.cfg.Local.Level() > d.cfg.Threshold
		if d.cfg.Muted != nil && d.cfg.Muted() {
			speaking = false
		}
		d.transition(SideLocal, speaking)
	}
	if d.cfg.Remote != nil {
		d.transition(SideRemote, d.cfg.Remote.Level() > d.cfg.Threshold)
	}
}

func (d *Detector) transition(side Side, speaking bool) {
	d.mu.Lock()
	if d.speaking[side] == speaking {
		d.mu.Unlock()
		return
	}
	d.speaking[side] = speaking
	d.mu.Unlock()

	if d.cfg.OnChange != nil {
		d.cfg.OnChange(side, speaking)
	}
}

// Speaking reports the last observed state for a side.
func (d *Detector) Speaking(side Side) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking[side]
}
