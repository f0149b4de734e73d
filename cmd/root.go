package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gridvoice/cli/internal/ui"
	"github.com/gridvoice/cli/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "gridvoice",
	Short:   "Terminal client for GridVoice, an online game with peer-to-peer voice chat",
	Long:    `GridVoice is a terminal client for an online tic-tac-toe service with built-in voice chat. Matches are played over a persistent duplex channel to the game service, while voice flows directly between the matched players over WebRTC, so audio never touches the server.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
