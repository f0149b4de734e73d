package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gridvoice/cli/internal/config"
	"github.com/gridvoice/cli/internal/match"
	"github.com/gridvoice/cli/internal/protocol"
	"github.com/gridvoice/cli/internal/session"
	"github.com/gridvoice/cli/internal/ui"
	"github.com/gridvoice/cli/internal/voice"
)

var (
	flagName   string
	flagMode   string
	flagDomain string
	flagSTUN   string
	flagAudio  string
)

var playCmd = &cobra.Command{
	Use:     "play",
	Aliases: []string{"p"},
	Short:   "Find an opponent and play a match with voice chat",
	Long: `Find an opponent through the matchmaking service and play a match.
Voice chat starts automatically once both players are in; it flows directly
between the two of you, never through the server.

Examples:
  gridvoice play
  gridvoice play --name Ada
  gridvoice play --audio /tmp/mic.ogg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay()
	},
}

// signalRelay adapts the match channel to the voice controller's outbound
// signaling interface.
type signalRelay struct {
	ch *match.Channel
}

func (r signalRelay) SendOffer(sdp string) error {
	return r.ch.SendSignal(protocol.OpVoiceOffer, protocol.Signal{SDP: sdp})
}

func (r signalRelay) SendAnswer(sdp string) error {
	return r.ch.SendSignal(protocol.OpVoiceAnswer, protocol.Signal{SDP: sdp})
}

func (r signalRelay) SendCandidate(candidate []byte) error {
	return r.ch.SendSignal(protocol.OpVoiceCandidate, protocol.Signal{Candidate: candidate})
}

func runPlay() error {
	cc, err := NewClientContext(config.Options{
		Domain:      flagDomain,
		STUNServer:  flagSTUN,
		AudioSource: flagAudio,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := cc.Authenticate(ctx, flagName)
	if err != nil {
		return err
	}
	if err := cc.Connect(ctx); err != nil {
		return err
	}
	defer cc.Manager.Disconnect()

	ctrl := voice.NewController(voice.ControllerConfig{
		Media:        voice.NewOggCapture(cc.Config.AudioSource),
		STUNServers:  cc.Config.STUNServers,
		VADInterval:  cc.Config.VADInterval,
		VADThreshold: cc.Config.VADThreshold,
	})
	defer ctrl.Cleanup()
	cc.Match.SetSignalSink(ctrl)

	model := ui.NewGameModel(sess.UserID, ui.GameCallbacks{
		Move:       cc.Match.SendMove,
		ToggleMute: ctrl.ToggleMute,
		Leave:      func() { cc.Match.LeaveMatch() },
	})
	program := tea.NewProgram(model)

	var (
		mu        sync.Mutex
		lastState protocol.GameState
		startedAt time.Time
		voiceOnce sync.Once
	)

	cancelState := cc.Match.OnGameState(func(state protocol.GameState) {
		mu.Lock()
		lastState = state
		if state.Status == protocol.MatchActive && startedAt.IsZero() {
			startedAt = time.Now()
		}
		mu.Unlock()

		program.Send(ui.StateMsg(state))

		// Voice starts once, as soon as both players are in. The first
		// player listed in the snapshot initiates; the ordering is the same
		// on both clients, so exactly one side sends the offer.
		if state.Status == protocol.MatchActive && len(state.Players) == 2 {
			voiceOnce.Do(func() {
				initiator := state.Players[0].UserID == sess.UserID
				go startVoice(program, ctrl, initiator, signalRelay{ch: cc.Match})
			})
		}
	})
	defer cancelState()

	cancelStatus := cc.Manager.OnStatusChange(func(s session.Status) {
		program.Send(ui.ConnMsg(s.String()))
	})
	defer cancelStatus()

	cancelFatal := cc.Manager.OnFatal(func(err error) {
		program.Send(ui.FatalMsg{Err: err})
	})
	defer cancelFatal()

	cancelSpeaking := ctrl.OnSpeaking(func(ev voice.SpeakingEvent) {
		program.Send(ui.SpeakingMsg{Local: ev.Side == voice.SideLocal, Speaking: ev.Speaking})
	})
	defer cancelSpeaking()

	cancelVoice := ctrl.OnStateChange(func(s voice.State) {
		program.Send(ui.VoiceMsg(s.String()))
	})
	defer cancelVoice()

	stopSpinner := ui.RunWaitingSpinner("Finding an opponent...")
	fctx, cancel := context.WithTimeout(ctx, requestTimeout)
	_, err = cc.Match.FindMatch(fctx, flagMode)
	cancel()
	stopSpinner()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			cc.Match.CancelSearch()
			return session.WrapError("find match", err, "no opponent found, search cancelled")
		}
		return err
	}

	if _, err := program.Run(); err != nil {
		return session.NewError("run game view", err)
	}

	mu.Lock()
	final := lastState
	var duration string
	if !startedAt.IsZero() {
		duration = time.Since(startedAt).Round(time.Second).String()
	}
	mu.Unlock()

	if final.Status == protocol.MatchFinished {
		fmt.Println()
		ui.NewMatchSummary(final, sess.UserID, duration).Render()
	}
	return nil
}

func startVoice(program *tea.Program, ctrl *voice.Controller, initiator bool, relay signalRelay) {
	err := ctrl.Start(context.Background(), initiator, relay)
	switch {
	case err == nil:
	case errors.Is(err, voice.ErrMicrophoneDenied):
		// The match continues without voice.
		program.Send(ui.VoiceMsg("off (no microphone)"))
	default:
		program.Send(ui.VoiceMsg("failed"))
	}
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name (prompted again if taken)")
	playCmd.Flags().StringVarP(&flagMode, "mode", "m", "casual", "Matchmaking mode")
	playCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom service domain")
	playCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	playCmd.Flags().StringVarP(&flagAudio, "audio", "a", "", "Ogg/Opus microphone source (file or pipe)")
}
