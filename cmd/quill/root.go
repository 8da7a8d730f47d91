package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag, logLevelFlag string
	ctx := newCommandContext(&configFlag, &logLevelFlag)

	root := &cobra.Command{
		Use:   "quill",
		Short: "Drive AI-assisted content workflows through the quill daemon",
		Long: "quill talks to a local daemon that researches, outlines, drafts, edits " +
			"and SEO-optimizes articles. Start it with `quill start`, then create a " +
			"workflow with `quill workflow new <topic>`.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Path to config.toml")
	flags.StringVar(&logLevelFlag, "log-level", "", "Daemon log level (debug, info, warn, error)")

	root.AddCommand(newDaemonCommands(ctx)...)
	root.AddCommand(
		newDaemonRunCommand(ctx),
		newWorkflowCommand(ctx),
		newLogsCommand(ctx),
		newConfigCommand(ctx),
		newTestNotifyCommand(ctx),
	)
	return root
}
