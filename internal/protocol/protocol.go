package protocol

import "github.com/vmihailenco/msgpack/v5"

// OpCode is the numeric discriminator carried by every envelope on the duplex
// channel. It selects how the payload is decoded.
type OpCode uint8

const (
	// Requests (client -> service, answered by an OpResult envelope with the
	// same sequence number).
	OpFindMatch     OpCode = 10
	OpLeaderboard   OpCode = 11
	OpDeleteAccount OpCode = 12

	// Fire-and-forget pushes (client -> service).
	OpJoinMatch    OpCode = 20
	OpLeaveMatch   OpCode = 21
	OpCancelSearch OpCode = 22
	OpMove         OpCode = 23

	// Pushes (service -> client).
	OpResult    OpCode = 30
	OpGameState OpCode = 31

	// Voice signaling, relayed verbatim between the matched peers in both
	// directions.
	OpVoiceOffer     OpCode = 40
	OpVoiceAnswer    OpCode = 41
	OpVoiceCandidate OpCode = 42
)

// Envelope is the wire unit on the duplex channel, encoded as msgpack in a
// binary WebSocket frame. Seq is zero for pushes; requests carry a non-zero
// Seq echoed back by the service on the matching OpResult.
type Envelope struct {
	Op      OpCode             `msgpack:"op"`
	Seq     uint32             `msgpack:"seq,omitempty"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

// NewEnvelope builds an envelope with an encoded payload.
func NewEnvelope(op OpCode, seq uint32, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Op: op, Seq: seq}, nil
	}
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Op: op, Seq: seq, Payload: b}, nil
}

// DecodePayload decodes the envelope payload into the provided struct.
func (e Envelope) DecodePayload(v any) error {
	return msgpack.Unmarshal(e.Payload, v)
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	return msgpack.Marshal(e)
}

// Decode parses a wire frame into an envelope.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	err := msgpack.Unmarshal(data, &e)
	return e, err
}

// Result statuses reported by the service.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusNameTaken = "name_taken"
)

// Result is the generic request/response payload.
type Result struct {
	Status string `msgpack:"status"`
	Reason string `msgpack:"reason,omitempty"`
	// MatchID is set on find-match results.
	MatchID string `msgpack:"match_id,omitempty"`
	// Entries is set on leaderboard results.
	Entries []LeaderboardEntry `msgpack:"entries,omitempty"`
}

// OK reports whether the service accepted the request.
func (r Result) OK() bool { return r.Status == StatusOK }

// FindMatch asks the service to locate or create a match for a mode.
type FindMatch struct {
	Mode string `msgpack:"mode"`
}

// JoinMatch, LeaveMatch and Move all address the current match by id.
type JoinMatch struct {
	MatchID string `msgpack:"match_id"`
}

type LeaveMatch struct {
	MatchID string `msgpack:"match_id"`
}

type Move struct {
	MatchID  string `msgpack:"match_id"`
	Position int    `msgpack:"position"`
}

// Match lifecycle statuses carried in GameState.Status.
const (
	MatchWaiting  = "waiting"
	MatchActive   = "active"
	MatchFinished = "finished"
)

// GameState is the authoritative snapshot pushed after every accepted move.
type GameState struct {
	MatchID string   `msgpack:"match_id"`
	Status  string   `msgpack:"status"`
	Board   []string `msgpack:"board"`
	Turn    string   `msgpack:"turn"` // user id of the player to move
	Winner  string   `msgpack:"winner,omitempty"`
	Players []Player `msgpack:"players"`
}

type Player struct {
	UserID      string `msgpack:"user_id"`
	DisplayName string `msgpack:"display_name"`
	Mark        string `msgpack:"mark"`
}

type LeaderboardEntry struct {
	Rank        int    `msgpack:"rank"`
	DisplayName string `msgpack:"display_name"`
	Wins        int    `msgpack:"wins"`
	Losses      int    `msgpack:"losses"`
	Score       int    `msgpack:"score"`
}

// Signal carries one voice-signaling unit: an SDP offer or answer, or a JSON
// ICE candidate. From is filled in by the service on relay so the receiver
// knows the sender; To addresses the peer on the way out.
type Signal struct {
	From      string `msgpack:"from,omitempty"`
	To        string `msgpack:"to,omitempty"`
	MatchID   string `msgpack:"match_id,omitempty"`
	SDP       string `msgpack:"sdp,omitempty"`
	Candidate []byte `msgpack:"candidate,omitempty"`
}
