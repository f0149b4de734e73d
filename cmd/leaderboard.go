package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gridvoice/cli/internal/config"
	"github.com/gridvoice/cli/internal/ui"
)

var leaderboardCmd = &cobra.Command{
	Use:     "leaderboard",
	Aliases: []string{"lb", "top"},
	Short:   "Show the current standings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLeaderboard()
	},
}

func runLeaderboard() error {
	cc, err := NewClientContext(config.Options{Domain: flagDomain})
	if err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := cc.Authenticate(ctx, flagName); err != nil {
		return err
	}
	if err := cc.Connect(ctx); err != nil {
		return err
	}
	defer cc.Manager.Disconnect()

	qctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	entries, err := cc.Match.Leaderboard(qctx)
	if err != nil {
		return err
	}

	ui.RenderLeaderboard(entries)
	return nil
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)

	leaderboardCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name (prompted again if taken)")
	leaderboardCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom service domain")
}
