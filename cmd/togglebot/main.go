package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/logging"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globals struct {
	env        *config.Env
	configPath string
	console    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("togglebot failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "togglebot",
		Short:         "Chat bot answering configured commands on Twitch and Discord",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			g.env = env
			if !cmd.Flags().Changed("config") {
				g.configPath = env.ConfigPath
			}
			logging.Setup(logging.Options{Level: env.LogLevel, File: env.LogFile, Console: g.console})
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "config.yaml", "main configuration file (overrides CONFIG_PATH)")
	root.PersistentFlags().BoolVar(&g.console, "console", false, "human readable log output")

	root.AddCommand(newRunCmd(g), newCheckCmd(g), newDispatchCmd(g), newDocsCmd(g))

	return root
}
