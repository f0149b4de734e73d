package voice

import (
	"sync"

	"github.com/gridvoice/cli/internal/logging"
)

// LogPlayer is the default Player. Terminal environments rarely have an
// audio output device wired up, so it only tracks the active stream and
// reports a zero level; a real sink can be injected where one exists.
type LogPlayer struct {
	mu     sync.Mutex
	stream RemoteStream
}

func (p *LogPlayer) Play(stream RemoteStream) error {
	p.mu.Lock()
	p.stream = stream
	p.mu.Unlock()
	log := logging.Component("playback")
	log.Info().Str("stream_id", stream.ID()).Str("kind", stream.Kind()).Msg("remote stream started")
	return nil
}

func (p *LogPlayer) Level() float64 { return 0 }

func (p *LogPlayer) Stop() {
	p.mu.Lock()
	p.stream = nil
	p.mu.Unlock()
}
