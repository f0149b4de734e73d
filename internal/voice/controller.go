package voice

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gridvoice/cli/internal/events"
	"github.com/gridvoice/cli/internal/logging"
)

// State is the lifecycle of one peer session.
type State int

const (
	StateIdle State = iota
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SpeakingEvent is raised on every voice-activity transition.
type SpeakingEvent struct {
	Side     Side
	Speaking bool
}

// ControllerConfig wires a Controller's capabilities.
type ControllerConfig struct {
	Media        MediaCapture
	NewTransport TransportFactory
	Player       Player
	STUNServers  []string
	VADInterval  time.Duration
	VADThreshold float64
}

// Controller owns one peer-to-peer audio session per match: the transport,
// both media streams and the voice-activity detector. It must release all of
// them on every exit path.
type Controller struct {
	cfg ControllerConfig
	log zerolog.Logger

	speakingEv events.Emitter[SpeakingEvent]
	stateEv    events.Emitter[State]

	mu        sync.Mutex
	state     State
	transport PeerTransport
	track     LocalTrack
	remote    RemoteStream
	detector  *Detector
	send      SignalSender
	muted     bool
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Player == nil {
		cfg.Player = &LogPlayer{}
	}
	if cfg.NewTransport == nil {
		cfg.NewTransport = NewPionTransport
	}
	return &Controller{
		cfg: cfg,
		log: logging.Component("voice"),
	}
}

// OnSpeaking subscribes to voice-activity transitions.
func (c *Controller) OnSpeaking(fn func(SpeakingEvent)) (cancel func()) {
	return c.speakingEv.Subscribe(fn)
}

// OnStateChange subscribes to peer-session state transitions.
func (c *Controller) OnStateChange(fn func(State)) (cancel func()) {
	return c.stateEv.Subscribe(fn)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start acquires the microphone, builds the transport, and, when initiating,
// sends the offer. Any failure triggers a full cleanup so no partial state
// is left behind.
func (c *Controller) Start(ctx context.Context, isInitiator bool, send SignalSender) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.send = send
	c.mu.Unlock()

	track, err := c.cfg.Media.OpenMicrophone(ctx)
	if err != nil {
		return err
	}

	transport, err := c.cfg.NewTransport(c.cfg.STUNServers)
	if err != nil {
		track.Close()
		return err
	}

	transport.OnIceCandidate(func(candidate []byte) {
		if err := send.SendCandidate(candidate); err != nil {
			c.log.Warn().Err(err).Msg("candidate relay failed")
		}
	})
	transport.OnTrack(c.onRemoteTrack)
	transport.OnStateChange(c.onTransportState)

	if err := transport.AddTrack(track); err != nil {
		track.Close()
		transport.Close()
		return err
	}

	detector := NewDetector(DetectorConfig{
		Interval:  c.cfg.VADInterval,
		Threshold: c.cfg.VADThreshold,
		Local:     track,
		Remote:    c.cfg.Player,
		Muted:     c.Muted,
		OnChange: func(side Side, speaking bool) {
			c.speakingEv.Emit(SpeakingEvent{Side: side, Speaking: speaking})
		},
	})

	c.mu.Lock()
	c.transport = transport
	c.track = track
	c.detector = detector
	c.muted = false
	c.mu.Unlock()

	detector.Start()

	if isInitiator {
		sdp, err := transport.CreateOffer()
		if err != nil {
			c.Cleanup()
			return err
		}
		if err := send.SendOffer(sdp); err != nil {
			c.Cleanup()
			return err
		}
	}

	c.setState(StateNegotiating)
	c.log.Info().Bool("initiator", isInitiator).Msg("voice session started")
	return nil
}

// HandleOffer applies the remote offer and sends back an answer. Responder
// side only.
func (c *Controller) HandleOffer(from, sdp string) {
	c.mu.Lock()
	transport, send := c.transport, c.send
	c.mu.Unlock()
	if transport == nil {
		c.log.Error().Err(ErrSignaling).Str("from", from).Msg("offer before voice session start dropped")
		return
	}

	answer, err := transport.AcceptOffer(sdp)
	if err != nil {
		c.log.Warn().Err(err).Str("from", from).Msg("offer rejected")
		return
	}
	if err := send.SendAnswer(answer); err != nil {
		c.log.Warn().Err(err).Msg("answer relay failed")
	}
}

// HandleAnswer applies the remote answer. Initiator side only.
func (c *Controller) HandleAnswer(from, sdp string) {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport == nil {
		c.log.Error().Err(ErrSignaling).Str("from", from).Msg("answer before voice session start dropped")
		return
	}
	if err := transport.AcceptAnswer(sdp); err != nil {
		c.log.Warn().Err(err).Str("from", from).Msg("answer rejected")
	}
}

// HandleIceCandidate applies an incoming network-path candidate. The
// transport must already exist: candidates are relayed only after the offer,
// so an early candidate indicates a signaling-order bug upstream and is
// dropped, not buffered.
func (c *Controller) HandleIceCandidate(from string, candidate []byte) {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport == nil {
		c.log.Error().Err(ErrSignaling).Str("from", from).Msg("candidate before voice session start dropped")
		return
	}
	if err := transport.AddIceCandidate(candidate); err != nil {
		c.log.Warn().Err(err).Str("from", from).Msg("candidate rejected")
	}
}

// ToggleMute flips the outgoing track without renegotiating. Returns the new
// mute state (true = muted).
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = !c.muted
	if c.track != nil {
		c.track.SetEnabled(!c.muted)
	}
	c.log.Info().Bool("muted", c.muted).Msg("mute toggled")
	return c.muted
}

// Muted reports the current mute state.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Cleanup releases every media resource and the transport. Safe to call
// multiple times and from any state, including never-started.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	transport := c.transport
	track := c.track
	detector := c.detector
	c.transport = nil
	c.track = nil
	c.remote = nil
	c.detector = nil
	c.send = nil
	c.mu.Unlock()

	if detector != nil {
		detector.Stop()
	}
	if track != nil {
		track.Close()
	}
	c.cfg.Player.Stop()
	if transport != nil {
		transport.Close()
	}

	c.log.Info().Msg("voice session closed")
	c.stateEv.Emit(StateClosed)
}

// Reset returns a closed controller to idle so a new match can start voice
// again with the same instance.
func (c *Controller) Reset() {
	c.Cleanup()
	c.mu.Lock()
	c.state = StateIdle
	c.muted = false
	c.mu.Unlock()
}

func (c *Controller) onRemoteTrack(stream RemoteStream) {
	c.mu.Lock()
	c.remote = stream
	c.mu.Unlock()

	// Playback failures (e.g. autoplay restrictions) are reported but
	// non-fatal: the session keeps running.
	if err := c.cfg.Player.Play(stream); err != nil {
		c.log.Warn().Err(err).Str("stream_id", stream.ID()).Msg("playback failed to start")
	}
}

func (c *Controller) onTransportState(s TransportState) {
	switch s {
	case TransportConnected:
		c.setState(StateConnected)
	case TransportFailed, TransportClosed:
		c.Cleanup()
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == s || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.stateEv.Emit(s)
}
