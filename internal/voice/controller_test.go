package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTrack struct {
	mu      sync.Mutex
	enabled bool
	level   float64
	closed  int
}

func (t *fakeTrack) Level() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.level
}

func (t *fakeTrack) setLevel(l float64) {
	t.mu.Lock()
	t.level = l
	t.mu.Unlock()
}

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) Close() error {
	t.mu.Lock()
	t.closed++
	t.mu.Unlock()
	return nil
}

type fakeCapture struct {
	track *fakeTrack
	err   error
}

func (c *fakeCapture) OpenMicrophone(ctx context.Context) (LocalTrack, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.track, nil
}

type fakeTransport struct {
	mu         sync.Mutex
	tracks     []LocalTrack
	offers     int
	acceptedOf []string
	acceptedAn []string
	candidates [][]byte
	closed     int
	offerErr   error

	onCand  func([]byte)
	onTrack func(RemoteStream)
	onState func(TransportState)
}

func (t *fakeTransport) AddTrack(track LocalTrack) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = append(t.tracks, track)
	return nil
}

func (t *fakeTransport) CreateOffer() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.offerErr != nil {
		return "", t.offerErr
	}
	t.offers++
	return "offer-sdp", nil
}

func (t *fakeTransport) AcceptOffer(sdp string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.acceptedOf = append(t.acceptedOf, sdp)
	return "answer-sdp", nil
}

func (t *fakeTransport) AcceptAnswer(sdp string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.acceptedAn = append(t.acceptedAn, sdp)
	return nil
}

func (t *fakeTransport) AddIceCandidate(candidate []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.candidates = append(t.candidates, candidate)
	return nil
}

func (t *fakeTransport) OnIceCandidate(fn func([]byte))        { t.onCand = fn }
func (t *fakeTransport) OnTrack(fn func(RemoteStream))         { t.onTrack = fn }
func (t *fakeTransport) OnStateChange(fn func(TransportState)) { t.onState = fn }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed++
	t.mu.Unlock()
	return nil
}

type fakePlayer struct {
	mu      sync.Mutex
	level   float64
	streams []RemoteStream
	stops   int
}

func (p *fakePlayer) Level() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *fakePlayer) Play(stream RemoteStream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams = append(p.streams, stream)
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
}

type fakeSender struct {
	mu         sync.Mutex
	offers     []string
	answers    []string
	candidates [][]byte
}

func (s *fakeSender) SendOffer(sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = append(s.offers, sdp)
	return nil
}

func (s *fakeSender) SendAnswer(sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, sdp)
	return nil
}

func (s *fakeSender) SendCandidate(candidate []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, candidate)
	return nil
}

type fakeStream struct{ id string }

func (s *fakeStream) ID() string   { return s.id }
func (s *fakeStream) Kind() string { return "audio" }

func newVoiceRig() (*Controller, *fakeTrack, *fakeTransport, *fakePlayer) {
	track := &fakeTrack{enabled: true}
	transport := &fakeTransport{}
	player := &fakePlayer{}
	ctrl := NewController(ControllerConfig{
		Media:  &fakeCapture{track: track},
		Player: player,
		NewTransport: func(stunServers []string) (PeerTransport, error) {
			return transport, nil
		},
		VADInterval: time.Hour, // sampled manually in tests
	})
	return ctrl, track, transport, player
}

func TestStartAsInitiatorSendsOffer(t *testing.T) {
	ctrl, _, transport, _ := newVoiceRig()
	sender := &fakeSender{}

	if err := ctrl.Start(context.Background(), true, sender); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := ctrl.State(); got != StateNegotiating {
		t.Fatalf("state = %v, want negotiating", got)
	}
	if transport.offers != 1 {
		t.Fatalf("offers created = %d, want 1", transport.offers)
	}
	if len(sender.offers) != 1 || sender.offers[0] != "offer-sdp" {
		t.Fatalf("offers sent = %v", sender.offers)
	}

	ctrl.HandleAnswer("peer", "their-answer")
	if len(transport.acceptedAn) != 1 || transport.acceptedAn[0] != "their-answer" {
		t.Fatalf("accepted answers = %v", transport.acceptedAn)
	}
}

func TestStartAsResponderAnswersOffer(t *testing.T) {
	ctrl, _, transport, _ := newVoiceRig()
	sender := &fakeSender{}

	if err := ctrl.Start(context.Background(), false, sender); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if transport.offers != 0 {
		t.Fatalf("responder created %d offers", transport.offers)
	}

	ctrl.HandleOffer("peer", "their-offer")
	if len(transport.acceptedOf) != 1 || transport.acceptedOf[0] != "their-offer" {
		t.Fatalf("accepted offers = %v", transport.acceptedOf)
	}
	if len(sender.answers) != 1 || sender.answers[0] != "answer-sdp" {
		t.Fatalf("answers sent = %v", sender.answers)
	}
}

func TestMicrophoneDeniedLeavesNoState(t *testing.T) {
	transport := &fakeTransport{}
	ctrl := NewController(ControllerConfig{
		Media: &fakeCapture{err: ErrMicrophoneDenied},
		NewTransport: func([]string) (PeerTransport, error) {
			return transport, nil
		},
	})

	err := ctrl.Start(context.Background(), true, &fakeSender{})
	if !errors.Is(err, ErrMicrophoneDenied) {
		t.Fatalf("err = %v, want ErrMicrophoneDenied", err)
	}
	if got := ctrl.State(); got != StateIdle {
		t.Fatalf("state after denial = %v, want idle", got)
	}
	// The game continues without voice: a later restart must be possible.
	if err := ctrl.Start(context.Background(), true, &fakeSender{}); !errors.Is(err, ErrMicrophoneDenied) {
		t.Fatalf("second Start err = %v", err)
	}
}

func TestStartTwiceRejected(t *testing.T) {
	ctrl, _, _, _ := newVoiceRig()
	if err := ctrl.Start(context.Background(), true, &fakeSender{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := ctrl.Start(context.Background(), true, &fakeSender{}); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start err = %v, want ErrAlreadyStarted", err)
	}
}

func TestSignalingBeforeStartDropped(t *testing.T) {
	ctrl, _, transport, _ := newVoiceRig()

	// None of these may panic or touch a transport that does not exist.
	ctrl.HandleOffer("peer", "sdp")
	ctrl.HandleAnswer("peer", "sdp")
	ctrl.HandleIceCandidate("peer", []byte(`{"candidate":"x"}`))

	if len(transport.acceptedOf)+len(transport.acceptedAn)+len(transport.candidates) != 0 {
		t.Fatal("signaling reached a transport before Start")
	}
}

func TestCandidateRoutedAfterStart(t *testing.T) {
	ctrl, _, transport, _ := newVoiceRig()
	if err := ctrl.Start(context.Background(), false, &fakeSender{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctrl.HandleIceCandidate("peer", []byte(`{"candidate":"a"}`))
	if len(transport.candidates) != 1 {
		t.Fatalf("candidates applied = %d, want 1", len(transport.candidates))
	}
}

func TestLocalCandidatesRelayed(t *testing.T) {
	ctrl, _, transport, _ := newVoiceRig()
	sender := &fakeSender{}
	if err := ctrl.Start(context.Background(), true, sender); err != nil {
		t.Fatalf("Start: %v", err)
	}

	transport.onCand([]byte(`{"candidate":"local"}`))
	if len(sender.candidates) != 1 {
		t.Fatalf("candidates relayed = %d, want 1", len(sender.candidates))
	}
}

func TestRemoteTrackStartsPlayback(t *testing.T) {
	ctrl, _, transport, player := newVoiceRig()
	if err := ctrl.Start(context.Background(), false, &fakeSender{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	transport.onTrack(&fakeStream{id: "s1"})
	if len(player.streams) != 1 || player.streams[0].ID() != "s1" {
		t.Fatalf("played streams = %v", player.streams)
	}
}

func TestTransportConnectedMovesState(t *testing.T) {
	ctrl, _, transport, _ := newVoiceRig()
	if err := ctrl.Start(context.Background(), true, &fakeSender{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var mu sync.Mutex
	var states []State
	ctrl.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	transport.onState(TransportConnected)
	if got := ctrl.State(); got != StateConnected {
		t.Fatalf("state = %v, want connected", got)
	}

	transport.onState(TransportFailed)
	if got := ctrl.State(); got != StateClosed {
		t.Fatalf("state after failure = %v, want closed", got)
	}
	if transport.closed != 1 {
		t.Fatalf("transport closed %d times, want 1", transport.closed)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnected, StateClosed}
	if len(states) != len(want) || states[0] != want[0] || states[1] != want[1] {
		t.Fatalf("emitted states = %v, want %v", states, want)
	}
}

func TestToggleMuteFlipsTrack(t *testing.T) {
	ctrl, track, _, _ := newVoiceRig()
	if err := ctrl.Start(context.Background(), true, &fakeSender{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if muted := ctrl.ToggleMute(); !muted {
		t.Fatal("first toggle should mute")
	}
	if track.Enabled() {
		t.Fatal("track still enabled after mute")
	}
	if muted := ctrl.ToggleMute(); muted {
		t.Fatal("second toggle should unmute")
	}
	if !track.Enabled() {
		t.Fatal("track not re-enabled after unmute")
	}
}

func TestCleanupIdempotent(t *testing.T) {
	ctrl, track, transport, player := newVoiceRig()
	if err := ctrl.Start(context.Background(), true, &fakeSender{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctrl.Cleanup()
	ctrl.Cleanup()

	if track.closed != 1 {
		t.Fatalf("track closed %d times, want 1", track.closed)
	}
	if transport.closed != 1 {
		t.Fatalf("transport closed %d times, want 1", transport.closed)
	}
	if player.stops != 1 {
		t.Fatalf("player stopped %d times, want 1", player.stops)
	}
}

func TestCleanupBeforeStart(t *testing.T) {
	ctrl, _, _, _ := newVoiceRig()
	ctrl.Cleanup()
	ctrl.Cleanup()
	if got := ctrl.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestResetAllowsRestart(t *testing.T) {
	ctrl, _, transport, _ := newVoiceRig()
	sender := &fakeSender{}
	if err := ctrl.Start(context.Background(), true, sender); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctrl.Reset()
	if got := ctrl.State(); got != StateIdle {
		t.Fatalf("state after reset = %v, want idle", got)
	}

	if err := ctrl.Start(context.Background(), true, sender); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if transport.offers != 2 {
		t.Fatalf("offers = %d, want 2", transport.offers)
	}
}
