package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gridvoice/cli/internal/config"
	"github.com/gridvoice/cli/internal/ui"
)

var flagYes bool

var deleteCmd = &cobra.Command{
	Use:     "delete-account",
	Aliases: []string{"delete"},
	Short:   "Permanently delete this account from the service",
	Long: `Ask the service to purge this account: its profile and all its
leaderboard standings. The stored device identity is removed afterwards.
This cannot be undone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete()
	},
}

func runDelete() error {
	cc, err := NewClientContext(config.Options{Domain: flagDomain})
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := cc.Authenticate(ctx, "")
	if err != nil {
		return err
	}

	if !flagYes {
		ui.PrintWarningf("This permanently deletes the account %q and its standings.", sess.DisplayName)
		answer, err := promptLine("Type the display name to confirm: ")
		if err != nil {
			return err
		}
		if answer != sess.DisplayName {
			ui.PrintInfo("Confirmation did not match, nothing deleted.")
			return nil
		}
	}

	if err := cc.Connect(ctx); err != nil {
		return err
	}

	stopSpinner := ui.RunSpinner("Deleting account...")
	err = cc.Manager.DeleteAccountData(ctx)
	stopSpinner()
	if err != nil {
		return err
	}

	ui.PrintSuccess("Account deleted.")
	return nil
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom service domain")
	deleteCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Skip the confirmation prompt")
}
