package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sprintroom/sprintroom-cli/internal/ui"
	"github.com/sprintroom/sprintroom-cli/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "sprintroom",
	Short:   "Terminal client for SprintRoom video meetings",
	Long:    `SprintRoom is a command-line client for joining SprintRoom video meetings directly from the terminal. It connects to a meeting room over WebSocket signaling, negotiates WebRTC media sessions with every other participant, and renders the room state, chat, and meeting agenda in a terminal UI.`,
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
