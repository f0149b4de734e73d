package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gridvoice/cli/internal/config"
	"github.com/gridvoice/cli/internal/ui"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored identity on this device",
	Long: `Remove the device identity and display name stored on this machine.
The account itself is untouched; use "gridvoice delete-account" to purge it
from the service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogout()
	},
}

func runLogout() error {
	cc, err := NewClientContext(config.Options{})
	if err != nil {
		return err
	}
	if err := cc.Manager.Logout(); err != nil {
		return err
	}
	ui.PrintSuccess("Logged out. This device will get a fresh identity next time.")
	return nil
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
