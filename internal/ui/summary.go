package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gridvoice/cli/internal/protocol"
)

// MatchSummary is the post-match recap shown after the game view exits.
type MatchSummary struct {
	Outcome  string
	Opponent string
	Moves    int
	Duration string
}

// NewMatchSummary derives a recap from the final snapshot.
func NewMatchSummary(state protocol.GameState, userID, duration string) MatchSummary {
	s := MatchSummary{Duration: duration}

	switch {
	case state.Winner == "":
		s.Outcome = "Draw"
	case state.Winner == userID:
		s.Outcome = "Victory"
	default:
		s.Outcome = "Defeat"
	}

	for _, p := range state.Players {
		if p.UserID != userID {
			s.Opponent = p.DisplayName
		}
	}
	for _, cell := range state.Board {
		if cell != "" {
			s.Moves++
		}
	}
	return s
}

// View renders the recap as a two-column table.
func (s MatchSummary) View() string {
	rows := [][]string{
		{"Outcome", s.Outcome},
		{"Opponent", s.Opponent},
		{"Moves", fmt.Sprintf("%d", s.Moves)},
		{"Duration", s.Duration},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Match", "Result").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// Render outputs the recap directly to stdout.
func (s MatchSummary) Render() {
	fmt.Println(s.View())
}
