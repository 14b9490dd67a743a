package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vaitul/partychat/internal/prefs"
	"github.com/vaitul/partychat/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "partychat",
	Short:        "Terminal client for watch-party chat rooms",
	SilenceUsage: true,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a room and start chatting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), createEntry(flagName, flagIcon))
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join an existing room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), joinEntry(args[0], flagName, flagIcon))
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <room-id>",
	Short: "Join a room with the saved display name and icon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), joinEntry(args[0], "", ""))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

var (
	flagConfig   string
	flagLogLevel string
	flagURL      string
	flagName     string
	flagIcon     string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", os.Getenv("PARTYCHAT_CONFIG"), "path to config file (from env PARTYCHAT_CONFIG if set)")
	flags.StringVar(&flagLogLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flags.StringVar(&flagURL, "url", "", "override chat service websocket URL")

	for _, c := range []*cobra.Command{createCmd, joinCmd} {
		c.Flags().StringVar(&flagName, "name", "", "display name (defaults to the saved one)")
		c.Flags().StringVar(&flagIcon, "icon", "", "icon (defaults to the saved one, then "+prefs.DefaultIcon+")")
	}

	rootCmd.AddCommand(createCmd, joinCmd, resumeCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute partychat command")
	}
}
