package ui

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/gridvoice/cli/internal/protocol"
)

// LeaderboardView renders the standings as a table.
func LeaderboardView(entries []protocol.LeaderboardEntry) string {
	if len(entries) == 0 {
		return MutedStyle.Render("No players ranked yet")
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatTitle
	t.AppendHeader(table.Row{"Rank", "Player", "Wins", "Losses", "Score"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Rank, e.DisplayName, e.Wins, e.Losses, e.Score})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Rank", Align: text.AlignRight},
		{Name: "Wins", Align: text.AlignRight},
		{Name: "Losses", Align: text.AlignRight},
		{Name: "Score", Align: text.AlignRight},
	})
	return t.Render()
}

// RenderLeaderboard outputs the standings directly to stdout.
func RenderLeaderboard(entries []protocol.LeaderboardEntry) {
	fmt.Println(TitleStyle.Render(IconTrophy + " Leaderboard"))
	fmt.Println(LeaderboardView(entries))
}
