package cmd

import (
	"bytes"
	"os"

	"github.com/josephlewis42/demosh/core/playback"
	"github.com/josephlewis42/demosh/core/shell"
	"github.com/josephlewis42/demosh/core/term"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// parseCmd shows how a script will be played without running it
var parseCmd = &cobra.Command{
	Use:   "parse SCRIPT",
	Short: "Print the commands and macros a script is built into.",
	Long: `Prints each command as <KIND FLAGS [CONDITIONS] TEXT>. KIND is CMD for
commands, ### for comments and #M# for Markdown prose. The flag columns are
S (typed), B (wait before), A (wait after), T (paced typing) and H (hidden).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		state, err := shell.New(shell.Options{Script: args[0]})
		if err != nil {
			return err
		}

		session, err := term.Open(os.Stdin)
		if err != nil {
			return err
		}

		engine, err := playback.Open(playback.Options{
			Dispatcher: state,
			Terminal:   session,
			Out:        &bytes.Buffer{},
			Fs:         afero.NewOsFs(),
		}, args[0])
		if err != nil {
			return err
		}

		return engine.Dump(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
