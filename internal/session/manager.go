package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gridvoice/cli/internal/events"
	"github.com/gridvoice/cli/internal/identity"
	"github.com/gridvoice/cli/internal/logging"
	"github.com/gridvoice/cli/internal/protocol"
)

// Status is the connection state of the duplex channel.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

const dialTimeout = 10 * time.Second

// Options wires a Manager's collaborators. URL builds the duplex channel
// endpoint from the session token.
type Options struct {
	Auth   AuthClient
	Store  identity.Store
	Dialer Dialer
	Policy Policy
	URL    func(token string) string

	// ReadyDelay is the grace period between the channel reporting open and
	// the Manager reporting connected, covering server-side readiness lag.
	ReadyDelay time.Duration

	// DeleteTimeout bounds the account-deletion response wait.
	DeleteTimeout time.Duration
}

// Manager owns authentication, the duplex channel, the connection-state
// machine and reconnection. All mutable state is guarded by one mutex; the
// suppression flags are checked under the same lock the drop handler takes,
// so a network drop can never slip between flag-set and handler.
type Manager struct {
	opts Options
	log  zerolog.Logger

	statusEv events.Emitter[Status]
	fatalEv  events.Emitter[error]

	// afterFunc schedules reconnect attempts; replaced in tests.
	afterFunc func(time.Duration, func()) *time.Timer

	mu       sync.Mutex
	sess     *Session
	ch       DuplexChannel
	status   Status
	push     func(protocol.Envelope)
	pending  map[uint32]chan protocol.Envelope
	seq      uint32
	attempt  int
	suppress bool // logout/deletion in progress: no reconnect, no error surfaced
	deleting bool
	// deleteDrop is closed by the drop handler while a deletion is in flight;
	// a disconnect inside the window is the deletion success signal.
	deleteDrop chan struct{}
}

func NewManager(opts Options) *Manager {
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy()
	}
	return &Manager{
		opts:      opts,
		log:       logging.Component("session"),
		afterFunc: time.AfterFunc,
		pending:   make(map[uint32]chan protocol.Envelope),
	}
}

// OnStatusChange subscribes to connection status transitions. This is the
// single notification point for status.
func (m *Manager) OnStatusChange(fn func(Status)) (cancel func()) {
	return m.statusEv.Subscribe(fn)
}

// OnFatal subscribes to terminal failures (reconnect exhaustion). Fired at
// most once per exhaustion; only a fresh manual Connect recovers.
func (m *Manager) OnFatal(fn func(error)) (cancel func()) {
	return m.fatalEv.Subscribe(fn)
}

// SetPushHandler registers the inbound push dispatcher. It must be called
// before Connect so no push can be lost between channel open and handler
// attach.
func (m *Manager) SetPushHandler(fn func(protocol.Envelope)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push = fn
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Session returns the current session, if authenticated.
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return Session{}, false
	}
	return *m.sess, true
}

// Authenticate exchanges the stored (or newly generated) device identity for
// a session. A non-empty displayName overrides the stored name, so the
// caller can re-prompt after ErrNameTaken. No session is created on failure.
func (m *Manager) Authenticate(ctx context.Context, displayName string) (Session, error) {
	id, ok, err := m.opts.Store.Load()
	if err != nil {
		return Session{}, NewError("load identity", err)
	}
	if !ok {
		id = identity.New(displayName)
	} else if displayName != "" {
		id.DisplayName = displayName
	}

	sess, err := m.opts.Auth.Authenticate(ctx, id)
	if err != nil {
		return Session{}, err
	}

	id.DisplayName = sess.DisplayName
	if err := m.opts.Store.Save(id); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist identity")
	}

	m.mu.Lock()
	m.sess = &sess
	m.mu.Unlock()

	m.log.Info().Str("user_id", sess.UserID).Str("name", sess.DisplayName).Msg("authenticated")
	return sess, nil
}

// Connect opens the duplex channel bound to the session. The push handler
// registered via SetPushHandler is live before the first frame is read.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	if m.ch != nil {
		m.mu.Unlock()
		return nil
	}
	sess := *m.sess
	m.mu.Unlock()

	m.setStatus(StatusConnecting)

	ch, err := m.opts.Dialer.Dial(ctx, m.opts.URL(sess.Token))
	if err != nil {
		m.setStatus(StatusDisconnected)
		return WrapError("connect", ErrConnectFailed, err.Error())
	}

	if !m.install(ch) {
		m.setStatus(StatusDisconnected)
		return ErrNoSession
	}

	if err := m.awaitReady(ctx); err != nil {
		m.Disconnect()
		return err
	}

	m.mu.Lock()
	m.attempt = 0
	m.mu.Unlock()
	m.setStatus(StatusConnected)
	m.log.Info().Msg("connected")
	return nil
}

// install publishes the channel and starts its read loop. It refuses the
// install when a logout or disconnect won the race during the dial.
func (m *Manager) install(ch DuplexChannel) bool {
	m.mu.Lock()
	if m.suppress || m.sess == nil || m.ch != nil {
		m.mu.Unlock()
		ch.Close()
		return false
	}
	m.ch = ch
	m.mu.Unlock()
	go m.readLoop(ch)
	return true
}

func (m *Manager) awaitReady(ctx context.Context) error {
	if m.opts.ReadyDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(m.opts.ReadyDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop drains one channel incarnation. When the incoming stream ends the
// drop handler decides between suppression, reconnection and giving up.
func (m *Manager) readLoop(ch DuplexChannel) {
	for data := range ch.Incoming() {
		env, err := protocol.Decode(data)
		if err != nil {
			m.log.Warn().Err(err).Msg("undecodable frame dropped")
			continue
		}
		m.dispatch(env)
	}
	m.handleDrop(ch)
}

func (m *Manager) dispatch(env protocol.Envelope) {
	if env.Seq != 0 {
		m.mu.Lock()
		waiter, ok := m.pending[env.Seq]
		if ok {
			delete(m.pending, env.Seq)
		}
		m.mu.Unlock()
		if ok {
			waiter <- env
		} else {
			m.log.Debug().Uint32("seq", env.Seq).Msg("response without a waiter dropped")
		}
		return
	}

	m.mu.Lock()
	push := m.push
	m.mu.Unlock()
	if push != nil {
		push(env)
	} else {
		m.log.Debug().Int("op", int(env.Op)).Msg("push with no handler dropped")
	}
}

// handleDrop runs when a channel's incoming stream ends. Drops of stale
// channels (already replaced or explicitly closed) are ignored.
func (m *Manager) handleDrop(ch DuplexChannel) {
	m.mu.Lock()
	if m.ch != ch {
		m.mu.Unlock()
		return
	}
	m.ch = nil
	m.failPendingLocked()

	if m.suppress {
		// Logout or deletion in progress: no reconnect, no error. A deletion
		// waiter treats the drop as its success signal.
		if m.deleteDrop != nil {
			close(m.deleteDrop)
			m.deleteDrop = nil
		}
		m.mu.Unlock()
		m.setStatus(StatusDisconnected)
		return
	}
	m.mu.Unlock()

	m.log.Warn().Msg("channel dropped")
	m.scheduleReconnect()
}

// scheduleReconnect advances the attempt counter and arms the backoff timer.
// Attempts are strictly sequential: the next one is only scheduled from the
// previous attempt's completion.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.suppress || m.sess == nil || m.ch != nil {
		m.mu.Unlock()
		return
	}
	m.attempt++
	attempt := m.attempt
	exhausted := m.opts.Policy.Exhausted(attempt)
	m.mu.Unlock()

	if exhausted {
		m.setStatus(StatusDisconnected)
		m.log.Error().Int("attempts", attempt-1).Msg("reconnect attempts exhausted")
		m.fatalEv.Emit(ErrReconnectExhausted)
		return
	}

	delay := m.opts.Policy.Delay(attempt)
	m.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnect scheduled")
	m.setStatus(StatusReconnecting)
	m.afterFunc(delay, m.redial)
}

func (m *Manager) redial() {
	m.mu.Lock()
	if m.suppress || m.sess == nil || m.ch != nil {
		m.mu.Unlock()
		return
	}
	sess := *m.sess
	m.mu.Unlock()

	m.setStatus(StatusConnecting)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	ch, err := m.opts.Dialer.Dial(ctx, m.opts.URL(sess.Token))
	if err != nil {
		m.log.Warn().Err(err).Msg("reconnect attempt failed")
		m.scheduleReconnect()
		return
	}

	if !m.install(ch) {
		return
	}
	time.Sleep(m.opts.ReadyDelay)

	m.mu.Lock()
	m.attempt = 0
	m.mu.Unlock()
	m.setStatus(StatusConnected)
	m.log.Info().Msg("reconnected")
}

// Disconnect closes the channel and clears the session. Idempotent, callable
// with no active channel.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	ch := m.ch
	m.ch = nil
	m.sess = nil
	m.attempt = 0
	m.failPendingLocked()
	m.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	m.setStatus(StatusDisconnected)
}

// Logout disconnects and clears the persisted identity. Reconnection is
// suppressed atomically with the flag set.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.suppress = true
	m.mu.Unlock()

	m.Disconnect()
	err := m.opts.Store.Clear()

	m.mu.Lock()
	m.suppress = false
	m.mu.Unlock()

	if err != nil {
		return NewError("logout", err)
	}
	m.log.Info().Msg("logged out")
	return nil
}

// DeleteAccountData instructs the service to purge the account's leaderboard
// and profile record, then disconnects and clears the identity. Only one
// deletion may be in flight; reconnection is suppressed for its duration.
// The deletion response races the channel drop and a bounded timer: a drop
// inside the window is the expected success signal (the server hangs up
// after purging), a timer expiry is reported as ErrDeletionTimeout, distinct
// from an explicit ErrDeletionFailed.
func (m *Manager) DeleteAccountData(ctx context.Context) error {
	m.mu.Lock()
	if m.deleting {
		m.mu.Unlock()
		return ErrDeletionInProgress
	}
	if m.ch == nil {
		m.mu.Unlock()
		return ErrChannelNotReady
	}
	m.deleting = true
	m.suppress = true
	drop := make(chan struct{})
	m.deleteDrop = drop
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.deleting = false
		m.suppress = false
		m.deleteDrop = nil
		m.mu.Unlock()
	}()

	type callResult struct {
		res protocol.Result
		err error
	}
	resCh := make(chan callResult, 1)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel() // the losing branch's eventual effect is ignored

	go func() {
		env, err := m.Call(cctx, protocol.OpDeleteAccount, nil)
		if err != nil {
			resCh <- callResult{err: err}
			return
		}
		var r protocol.Result
		if err := env.DecodePayload(&r); err != nil {
			resCh <- callResult{err: err}
			return
		}
		resCh <- callResult{res: r}
	}()

	timer := time.NewTimer(m.opts.DeleteTimeout)
	defer timer.Stop()

	var result error
	select {
	case <-drop:
		// Server purged the account and hung up.
	case r := <-resCh:
		switch {
		case r.err != nil && errors.Is(r.err, ErrChannelNotReady):
			// The pending call failed because the channel dropped mid-flight;
			// same success signal as the drop branch.
		case r.err != nil:
			result = NewError("delete account", r.err)
		case r.res.OK():
		default:
			result = WrapError("delete account", ErrDeletionFailed, r.res.Reason)
		}
	case <-timer.C:
		result = ErrDeletionTimeout
	}

	if result != nil {
		return result
	}

	m.Disconnect()
	if err := m.opts.Store.Clear(); err != nil {
		return NewError("delete account", err)
	}
	m.log.Info().Msg("account data deleted")
	return nil
}

// Call issues a request envelope and waits for the response with the same
// sequence number. The context bounds the wait; a channel drop fails all
// pending calls with ErrChannelNotReady.
func (m *Manager) Call(ctx context.Context, op protocol.OpCode, payload any) (protocol.Envelope, error) {
	m.mu.Lock()
	ch := m.ch
	if ch == nil {
		m.mu.Unlock()
		return protocol.Envelope{}, ErrChannelNotReady
	}
	m.seq++
	if m.seq == 0 {
		m.seq = 1
	}
	seq := m.seq
	waiter := make(chan protocol.Envelope, 1)
	m.pending[seq] = waiter
	m.mu.Unlock()

	env, err := protocol.NewEnvelope(op, seq, payload)
	if err != nil {
		m.forgetPending(seq)
		return protocol.Envelope{}, NewError("encode request", err)
	}
	data, err := env.Encode()
	if err != nil {
		m.forgetPending(seq)
		return protocol.Envelope{}, NewError("encode request", err)
	}
	if err := ch.Send(data); err != nil {
		m.forgetPending(seq)
		return protocol.Envelope{}, ErrChannelNotReady
	}

	select {
	case resp, ok := <-waiter:
		if !ok {
			return protocol.Envelope{}, ErrChannelNotReady
		}
		return resp, nil
	case <-ctx.Done():
		m.forgetPending(seq)
		return protocol.Envelope{}, ctx.Err()
	}
}

// Push sends a fire-and-forget envelope.
func (m *Manager) Push(op protocol.OpCode, payload any) error {
	m.mu.Lock()
	ch := m.ch
	m.mu.Unlock()
	if ch == nil {
		return ErrChannelNotReady
	}

	env, err := protocol.NewEnvelope(op, 0, payload)
	if err != nil {
		return NewError("encode push", err)
	}
	data, err := env.Encode()
	if err != nil {
		return NewError("encode push", err)
	}
	return ch.Send(data)
}

func (m *Manager) forgetPending(seq uint32) {
	m.mu.Lock()
	delete(m.pending, seq)
	m.mu.Unlock()
}

// failPendingLocked closes every waiter so in-flight calls fail fast.
// Caller holds m.mu.
func (m *Manager) failPendingLocked() {
	for seq, waiter := range m.pending {
		close(waiter)
		delete(m.pending, seq)
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if m.status == s {
		m.mu.Unlock()
		return
	}
	m.status = s
	m.mu.Unlock()

	m.log.Debug().Str("status", s.String()).Msg("status change")
	m.statusEv.Emit(s)
}
