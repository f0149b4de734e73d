package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gridvoice/cli/internal/protocol"
)

// Messages pushed into the game view from the session, match and voice
// layers via tea.Program.Send.
type (
	// StateMsg carries an authoritative game snapshot.
	StateMsg protocol.GameState
	// ConnMsg updates the connection status line ("connected",
	// "reconnecting", ...).
	ConnMsg string
	// SpeakingMsg flips a speaking indicator.
	SpeakingMsg struct {
		Local    bool
		Speaking bool
	}
	// VoiceMsg updates the voice session status line.
	VoiceMsg string
	// NoticeMsg shows a transient one-line notice.
	NoticeMsg string
	// FatalMsg ends the program with an error banner.
	FatalMsg struct{ Err error }
)

// GameCallbacks are the actions a player can take from the board. They run
// on the bubbletea goroutine and must not block.
type GameCallbacks struct {
	Move       func(position int) error
	ToggleMute func() (muted bool)
	Leave      func()
}

// GameModel renders one match: the 3x3 board, both players, whose turn it
// is, connection and voice status, and the speaking indicators.
type GameModel struct {
	userID    string
	callbacks GameCallbacks
	spinner   spinner.Model

	state   protocol.GameState
	haveSnt bool
	conn    string
	voice   string
	notice  string
	fatal   error

	cursor         int
	muted          bool
	localSpeaking  bool
	remoteSpeaking bool
	quitting       bool
}

func NewGameModel(userID string, callbacks GameCallbacks) *GameModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = SpinnerStyle
	return &GameModel{
		userID:    userID,
		callbacks: callbacks,
		spinner:   s,
		conn:      "connected",
		voice:     "off",
		cursor:    4, // center cell
	}
}

func (m *GameModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *GameModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StateMsg:
		m.state = protocol.GameState(msg)
		m.haveSnt = true
		m.notice = ""
		if m.state.Status == protocol.MatchFinished {
			return m, tea.Quit
		}
		return m, nil

	case ConnMsg:
		m.conn = string(msg)
		return m, nil

	case VoiceMsg:
		m.voice = string(msg)
		return m, nil

	case SpeakingMsg:
		if msg.Local {
			m.localSpeaking = msg.Speaking
		} else {
			m.remoteSpeaking = msg.Speaking
		}
		return m, nil

	case NoticeMsg:
		m.notice = string(msg)
		return m, nil

	case FatalMsg:
		m.fatal = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m *GameModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		if m.callbacks.Leave != nil {
			m.callbacks.Leave()
		}
		return m, tea.Quit

	case "m":
		if m.callbacks.ToggleMute != nil {
			m.muted = m.callbacks.ToggleMute()
		}
		return m, nil

	case "up", "k":
		if m.cursor >= 3 {
			m.cursor -= 3
		}
	case "down", "j":
		if m.cursor < 6 {
			m.cursor += 3
		}
	case "left", "h":
		if m.cursor%3 > 0 {
			m.cursor--
		}
	case "right", "l":
		if m.cursor%3 < 2 {
			m.cursor++
		}

	case "enter", " ":
		return m, m.placeMove(m.cursor)

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		// Numpad-style direct placement.
		pos := int(msg.String()[0] - '1')
		m.cursor = pos
		return m, m.placeMove(pos)
	}
	return m, nil
}

func (m *GameModel) placeMove(pos int) tea.Cmd {
	if m.callbacks.Move == nil || !m.myTurn() {
		m.notice = "not your turn"
		return nil
	}
	if m.cellAt(pos) != "" {
		m.notice = "cell already taken"
		return nil
	}
	if err := m.callbacks.Move(pos); err != nil {
		m.notice = err.Error()
	}
	return nil
}

func (m *GameModel) myTurn() bool {
	return m.haveSnt && m.state.Status == protocol.MatchActive && m.state.Turn == m.userID
}

func (m *GameModel) cellAt(pos int) string {
	if pos < 0 || pos >= len(m.state.Board) {
		return ""
	}
	return m.state.Board[pos]
}

func (m *GameModel) View() string {
	if m.quitting {
		return ""
	}
	if m.fatal != nil {
		return ErrorBoxStyle.Render(fmt.Sprintf("%s %s", IconError, m.fatal.Error())) + "\n"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(IconGame + " GridVoice"))
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	if !m.haveSnt || m.state.Status == protocol.MatchWaiting {
		b.WriteString(fmt.Sprintf("%s Waiting for an opponent...\n", m.spinner.View()))
		b.WriteString("\n" + MutedStyle.Render("Press q to leave"))
		return b.String()
	}

	b.WriteString(m.playersLine())
	b.WriteString("\n\n")
	b.WriteString(m.boardView())
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(WarningStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n" + MutedStyle.Render("arrows/1-9 place · m mute · q forfeit"))
	return b.String()
}

func (m *GameModel) statusLine() string {
	mic := IconMic
	if m.muted {
		mic = IconMicMuted
	}
	micStyle := MutedStyle
	if m.localSpeaking {
		micStyle = SuccessStyle
	}
	spk := MutedStyle
	if m.remoteSpeaking {
		spk = SuccessStyle
	}
	return fmt.Sprintf("%s %s  %s  %s",
		MutedStyle.Render(IconConnect+" "+m.conn),
		MutedStyle.Render("· voice "+m.voice),
		micStyle.Render(mic),
		spk.Render(IconSpeaker),
	)
}

func (m *GameModel) playersLine() string {
	parts := make([]string, 0, len(m.state.Players))
	for _, p := range m.state.Players {
		style := MutedStyle
		if m.state.Status == protocol.MatchActive && m.state.Turn == p.UserID {
			style = BoldStyle
		}
		name := p.DisplayName
		if p.UserID == m.userID {
			name += " (you)"
		}
		parts = append(parts, style.Render(fmt.Sprintf("%s %s %s", IconPeer, name, m.markStyled(p.Mark))))
	}
	return strings.Join(parts, MutedStyle.Render("  vs  "))
}

func (m *GameModel) boardView() string {
	rows := make([]string, 0, 3)
	for r := 0; r < 3; r++ {
		cells := make([]string, 0, 3)
		for c := 0; c < 3; c++ {
			pos := r*3 + c
			content := m.markStyled(m.cellAt(pos))
			style := CellStyle
			if pos == m.cursor && m.myTurn() {
				style = CellCursorStyle
			}
			cells = append(cells, style.Render(content))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *GameModel) markStyled(mark string) string {
	switch mark {
	case "X":
		return MarkXStyle.Render(mark)
	case "O":
		return MarkOStyle.Render(mark)
	default:
		return " "
	}
}
