package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"

	"github.com/gridvoice/cli/internal/logging"
)

// oggPageInterval is the pacing for feeding Opus pages into the track.
const oggPageInterval = 20 * time.Millisecond

// levelFullScale is the Opus page size treated as level 1.0. Opus VBR page
// size tracks signal energy, which makes it a usable level proxy without
// decoding.
const levelFullScale = 1000.0

// OggCapture is a MediaCapture that streams Ogg/Opus from a file or pipe,
// the usual way to feed a terminal client from an external recorder
// (e.g. ffmpeg writing to a FIFO).
type OggCapture struct {
	// Path of the Ogg/Opus source. Empty means no capture device.
	Path string
}

func NewOggCapture(path string) *OggCapture {
	return &OggCapture{Path: path}
}

func (c *OggCapture) OpenMicrophone(ctx context.Context) (LocalTrack, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("no audio source configured: %w", ErrMicrophoneDenied)
	}

	file, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Path, ErrMicrophoneDenied)
	}

	ogg, _, err := oggreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("parse ogg source: %w", ErrMicrophoneDenied)
	}

	rtpTrack, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus},
		"audio", "gridvoice",
	)
	if err != nil {
		file.Close()
		return nil, err
	}

	track := &oggTrack{
		rtp:     rtpTrack,
		ogg:     ogg,
		file:    file,
		enabled: true,
		done:    make(chan struct{}),
	}
	go track.pump()
	return track, nil
}

// oggTrack feeds Opus pages into a pion sample track and keeps a running
// signal-level estimate.
type oggTrack struct {
	rtp  *pion.TrackLocalStaticSample
	ogg  *oggreader.OggReader
	file *os.File

	mu      sync.Mutex
	enabled bool
	level   float64

	closeOnce sync.Once
	done      chan struct{}
}

func (t *oggTrack) pump() {
	log := logging.Component("capture")
	ticker := time.NewTicker(oggPageInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		page, _, err := t.ogg.ParseNextPage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn().Err(err).Msg("audio source read failed")
			}
			t.setLevel(0)
			return
		}

		t.mu.Lock()
		enabled := t.enabled
		t.mu.Unlock()
		if !enabled {
			// Muted: keep draining the source but send nothing.
			t.setLevel(0)
			continue
		}

		t.setLevel(min(float64(len(page))/levelFullScale, 1))
		if err := t.rtp.WriteSample(media.Sample{Data: page, Duration: oggPageInterval}); err != nil {
			log.Warn().Err(err).Msg("sample write failed")
		}
	}
}

func (t *oggTrack) setLevel(l float64) {
	t.mu.Lock()
	t.level = l
	t.mu.Unlock()
}

func (t *oggTrack) Level() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level
}

func (t *oggTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	if !enabled {
		t.level = 0
	}
	t.mu.Unlock()
}

func (t *oggTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *oggTrack) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.file.Close()
	})
	return nil
}

func (t *oggTrack) RTPTrack() pion.TrackLocal {
	return t.rtp
}
