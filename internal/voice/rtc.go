package voice

import (
	"encoding/json"
	"fmt"

	pion "github.com/pion/webrtc/v4"

	"github.com/gridvoice/cli/internal/logging"
)

// rtpTrackProvider is implemented by local tracks that wrap a pion track.
type rtpTrackProvider interface {
	RTPTrack() pion.TrackLocal
}

// PionTransport adapts a pion PeerConnection to the PeerTransport interface.
type PionTransport struct {
	pc      *pion.PeerConnection
	onCand  func([]byte)
	onTrack func(RemoteStream)
	onState func(TransportState)
}

// NewPionTransport builds a transport with the given STUN servers. It is the
// production TransportFactory.
func NewPionTransport(stunServers []string) (PeerTransport, error) {
	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers: []pion.ICEServer{{URLs: stunServers}},
	})
	if err != nil {
		return nil, err
	}

	t := &PionTransport{pc: pc}
	log := logging.Component("webrtc")

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil || t.onCand == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			log.Warn().Err(err).Msg("candidate marshal failed")
			return
		}
		t.onCand(data)
	})

	pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		log.Info().Str("kind", track.Kind().String()).Str("track_id", track.ID()).Msg("remote track")
		if t.onTrack != nil {
			t.onTrack(&pionRemoteStream{track: track})
		}
	})

	pc.OnConnectionStateChange(func(s pion.PeerConnectionState) {
		log.Info().Str("peer_connection_state", s.String()).Msg("peer state")
		if t.onState == nil {
			return
		}
		switch s {
		case pion.PeerConnectionStateConnecting:
			t.onState(TransportConnecting)
		case pion.PeerConnectionStateConnected:
			t.onState(TransportConnected)
		case pion.PeerConnectionStateFailed, pion.PeerConnectionStateDisconnected:
			t.onState(TransportFailed)
		case pion.PeerConnectionStateClosed:
			t.onState(TransportClosed)
		}
	})

	return t, nil
}

func (t *PionTransport) OnIceCandidate(fn func([]byte)) { t.onCand = fn }
func (t *PionTransport) OnTrack(fn func(RemoteStream)) { t.onTrack = fn }
func (t *PionTransport) OnStateChange(fn func(TransportState)) { t.onState = fn }

func (t *PionTransport) AddTrack(track LocalTrack) error {
	provider, ok := track.(rtpTrackProvider)
	if !ok {
		return fmt.Errorf("local track %T does not carry an RTP track", track)
	}
	_, err := t.pc.AddTrack(provider.RTPTrack())
	return err
}

// CreateOffer synthesizes the local offer. Candidates trickle through
// OnIceCandidate as they are gathered.
func (t *PionTransport) CreateOffer() (string, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	return t.pc.LocalDescription().SDP, nil
}

// AcceptOffer applies the remote offer and synthesizes the answer.
func (t *PionTransport) AcceptOffer(sdp string) (string, error) {
	remote := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp}
	if err := t.pc.SetRemoteDescription(remote); err != nil {
		return "", err
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return t.pc.LocalDescription().SDP, nil
}

func (t *PionTransport) AcceptAnswer(sdp string) error {
	return t.pc.SetRemoteDescription(pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  sdp,
	})
}

func (t *PionTransport) AddIceCandidate(candidate []byte) error {
	var init pion.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return fmt.Errorf("parse ICE candidate: %w", err)
	}
	return t.pc.AddICECandidate(init)
}

func (t *PionTransport) Close() error {
	return t.pc.Close()
}

type pionRemoteStream struct {
	track *pion.TrackRemote
}

func (s *pionRemoteStream) ID() string   { return s.track.ID() }
func (s *pionRemoteStream) Kind() string { return s.track.Kind().String() }
