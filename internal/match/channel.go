// Package match exposes matchmaking, move submission and leaderboard queries
// on top of the session manager's duplex channel, and demultiplexes inbound
// pushes by opcode.
package match

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gridvoice/cli/internal/events"
	"github.com/gridvoice/cli/internal/logging"
	"github.com/gridvoice/cli/internal/protocol"
	"github.com/gridvoice/cli/internal/session"
)

// SignalSink receives relayed voice-signaling messages. Implemented by the
// voice controller; payloads are forwarded verbatim with the sender attached.
type SignalSink interface {
	HandleOffer(from, sdp string)
	HandleAnswer(from, sdp string)
	HandleIceCandidate(from string, candidate []byte)
}

// Channel is the matchmaking and gameplay protocol layer. At most one match
// is joined per session.
type Channel struct {
	mgr *session.Manager
	log zerolog.Logger

	stateEv  events.Emitter[protocol.GameState]
	joinedEv events.Emitter[string]

	mu      sync.Mutex
	matchID string
	voice   SignalSink
}

// New wires a Channel to the manager. The push handler is registered here,
// before any Connect call, so no early push is dropped.
func New(mgr *session.Manager) *Channel {
	c := &Channel{
		mgr: mgr,
		log: logging.Component("match"),
	}
	mgr.SetPushHandler(c.dispatch)
	mgr.OnStatusChange(func(s session.Status) {
		if s == session.StatusDisconnected {
			c.mu.Lock()
			c.matchID = ""
			c.mu.Unlock()
		}
	})
	return c
}

// SetSignalSink routes inbound voice signaling to the given sink.
func (c *Channel) SetSignalSink(sink SignalSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voice = sink
}

// OnGameState subscribes to authoritative state snapshots.
func (c *Channel) OnGameState(fn func(protocol.GameState)) (cancel func()) {
	return c.stateEv.Subscribe(fn)
}

// OnMatchJoined subscribes to match-join notifications.
func (c *Channel) OnMatchJoined(fn func(matchID string)) (cancel func()) {
	return c.joinedEv.Subscribe(fn)
}

// MatchID returns the currently joined match, empty when not in a match.
func (c *Channel) MatchID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matchID
}

// FindMatch asks the service to locate or create a match for the mode, then
// joins it. The two-step flow is deliberate: the service is the sole arbiter
// of match assignment, so concurrent searchers cannot race each other.
func (c *Channel) FindMatch(ctx context.Context, mode string) (string, error) {
	env, err := c.mgr.Call(ctx, protocol.OpFindMatch, protocol.FindMatch{Mode: mode})
	if err != nil {
		c.log.Warn().Err(err).Str("mode", mode).Msg("find match failed")
		return "", err
	}

	var res protocol.Result
	if err := env.DecodePayload(&res); err != nil {
		return "", session.NewError("find match", err)
	}
	if !res.OK() {
		return "", session.WrapError("find match", session.ErrRequestRejected, res.Reason)
	}

	if err := c.JoinMatch(res.MatchID); err != nil {
		return "", err
	}
	return res.MatchID, nil
}

// JoinMatch announces this client as a participant of the match.
func (c *Channel) JoinMatch(matchID string) error {
	if err := c.mgr.Push(protocol.OpJoinMatch, protocol.JoinMatch{MatchID: matchID}); err != nil {
		c.log.Warn().Err(err).Str("match_id", matchID).Msg("join match failed")
		return err
	}

	c.mu.Lock()
	c.matchID = matchID
	c.mu.Unlock()

	c.log.Info().Str("match_id", matchID).Msg("joined match")
	c.joinedEv.Emit(matchID)
	return nil
}

// CancelSearch withdraws a pending match search.
func (c *Channel) CancelSearch() error {
	if err := c.mgr.Push(protocol.OpCancelSearch, nil); err != nil {
		c.log.Warn().Err(err).Msg("cancel search failed")
		return err
	}
	return nil
}

// LeaveMatch leaves the current match. Leaving an active match signals
// forfeiture to the service.
func (c *Channel) LeaveMatch() error {
	c.mu.Lock()
	matchID := c.matchID
	c.matchID = ""
	c.mu.Unlock()

	if matchID == "" {
		c.log.Warn().Msg("leave match: no match joined")
		return session.ErrChannelNotReady
	}
	if err := c.mgr.Push(protocol.OpLeaveMatch, protocol.LeaveMatch{MatchID: matchID}); err != nil {
		c.log.Warn().Err(err).Str("match_id", matchID).Msg("leave match failed")
		return err
	}
	return nil
}

// SendMove submits a move at the given board position.
func (c *Channel) SendMove(position int) error {
	c.mu.Lock()
	matchID := c.matchID
	c.mu.Unlock()

	if matchID == "" {
		c.log.Warn().Int("position", position).Msg("send move: no match joined")
		return session.ErrChannelNotReady
	}
	if err := c.mgr.Push(protocol.OpMove, protocol.Move{MatchID: matchID, Position: position}); err != nil {
		c.log.Warn().Err(err).Int("position", position).Msg("send move failed")
		return err
	}
	return nil
}

// Leaderboard fetches the current standings.
func (c *Channel) Leaderboard(ctx context.Context) ([]protocol.LeaderboardEntry, error) {
	env, err := c.mgr.Call(ctx, protocol.OpLeaderboard, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("leaderboard query failed")
		return nil, err
	}

	var res protocol.Result
	if err := env.DecodePayload(&res); err != nil {
		return nil, session.NewError("leaderboard", err)
	}
	if !res.OK() {
		return nil, session.WrapError("leaderboard", session.ErrRequestRejected, res.Reason)
	}
	return res.Entries, nil
}

// SendSignal relays one voice-signaling unit to the matched peer.
func (c *Channel) SendSignal(op protocol.OpCode, sig protocol.Signal) error {
	c.mu.Lock()
	sig.MatchID = c.matchID
	c.mu.Unlock()

	if err := c.mgr.Push(op, sig); err != nil {
		c.log.Warn().Err(err).Int("op", int(op)).Msg("signal relay failed")
		return err
	}
	return nil
}

// dispatch demultiplexes one inbound push envelope by opcode. Unknown
// opcodes are logged and dropped, never fatal.
func (c *Channel) dispatch(env protocol.Envelope) {
	switch env.Op {
	case protocol.OpGameState:
		var state protocol.GameState
		if err := env.DecodePayload(&state); err != nil {
			c.log.Warn().Err(err).Msg("undecodable game state dropped")
			return
		}
		c.stateEv.Emit(state)

	case protocol.OpVoiceOffer, protocol.OpVoiceAnswer, protocol.OpVoiceCandidate:
		var sig protocol.Signal
		if err := env.DecodePayload(&sig); err != nil {
			c.log.Warn().Err(err).Int("op", int(env.Op)).Msg("undecodable signal dropped")
			return
		}
		c.mu.Lock()
		sink := c.voice
		c.mu.Unlock()
		if sink == nil {
			c.log.Debug().Int("op", int(env.Op)).Msg("signal with no sink dropped")
			return
		}
		switch env.Op {
		case protocol.OpVoiceOffer:
			sink.HandleOffer(sig.From, sig.SDP)
		case protocol.OpVoiceAnswer:
			sink.HandleAnswer(sig.From, sig.SDP)
		case protocol.OpVoiceCandidate:
			sink.HandleIceCandidate(sig.From, sig.Candidate)
		}

	default:
		c.log.Debug().Int("op", int(env.Op)).Msg("unknown opcode dropped")
	}
}
