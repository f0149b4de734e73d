// Package voice establishes one peer-to-peer audio session per match:
// microphone capture, ICE/SDP negotiation, remote playback and continuous
// voice-activity sensing. Platform capabilities (peer connection, media
// capture, playback) sit behind narrow interfaces so the state machines are
// testable without network or hardware.
package voice

import (
	"context"
	"errors"
)

var (
	// ErrMicrophoneDenied means the platform refused microphone access.
	// Surfaced distinctly: voice chat simply does not start, the game is
	// unaffected, and the UI can explain the permission requirement.
	ErrMicrophoneDenied = errors.New("microphone access denied")
	// ErrAlreadyStarted rejects a second Start on a live session.
	ErrAlreadyStarted = errors.New("voice session already started")
	// ErrSignaling marks a malformed or out-of-order offer/answer/candidate.
	// The offending message is dropped; the session continues.
	ErrSignaling = errors.New("signaling error")
)

// TransportState is the coarse connection state of a PeerTransport.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// LevelSource reports a normalized average signal level in [0, 1].
type LevelSource interface {
	Level() float64
}

// LocalTrack is the outgoing audio track. Disabling it mutes the microphone
// without renegotiating the connection.
type LocalTrack interface {
	LevelSource
	SetEnabled(enabled bool)
	Enabled() bool
	Close() error
}

// RemoteStream is an incoming audio stream from the peer.
type RemoteStream interface {
	ID() string
	Kind() string
}

// MediaCapture acquires the microphone.
type MediaCapture interface {
	// OpenMicrophone fails with ErrMicrophoneDenied when no capture device
	// is available or the platform refuses access.
	OpenMicrophone(ctx context.Context) (LocalTrack, error)
}

// Player renders a remote stream to the speakers. Level reports the playback
// signal level for remote voice-activity sensing.
type Player interface {
	LevelSource
	Play(stream RemoteStream) error
	Stop()
}

// PeerTransport is one peer-to-peer connection. Callbacks must be registered
// before negotiation starts.
type PeerTransport interface {
	AddTrack(track LocalTrack) error
	CreateOffer() (sdp string, err error)
	AcceptOffer(sdp string) (answer string, err error)
	AcceptAnswer(sdp string) error
	AddIceCandidate(candidate []byte) error
	OnIceCandidate(fn func(candidate []byte))
	OnTrack(fn func(RemoteStream))
	OnStateChange(fn func(TransportState))
	Close() error
}

// TransportFactory builds a transport configured with the given STUN-class
// relay-discovery servers.
type TransportFactory func(stunServers []string) (PeerTransport, error)

// SignalSender relays outbound signaling units to the matched peer through
// the duplex channel.
type SignalSender interface {
	SendOffer(sdp string) error
	SendAnswer(sdp string) error
	SendCandidate(candidate []byte) error
}
