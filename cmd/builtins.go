package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/josephlewis42/demosh/core/playback"
	"github.com/josephlewis42/demosh/core/script"
	"github.com/josephlewis42/demosh/core/shell"
	"github.com/spf13/cobra"
)

// builtinsCmd lists what scripts get without defining it themselves
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the interpreter builtins and the bundled macro library.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		heading := color.New(color.Bold)
		out := cmd.OutOrStdout()

		state, err := shell.New(shell.Options{})
		if err != nil {
			return err
		}

		heading.Fprintln(out, "Commands:")
		for _, name := range state.Builtins() {
			fmt.Fprintln(out, "  "+name)
		}

		elems, err := script.Parse(playback.BuiltinsImport, script.ModeShell, strings.NewReader(playback.BuiltinMacros()))
		if err != nil {
			return err
		}

		heading.Fprintf(out, "Macros (#@import %s):\n", playback.BuiltinsImport)
		for _, elem := range elems {
			if elem.Kind == script.KindMacro && !strings.HasPrefix(elem.Name, "_") {
				fmt.Fprintln(out, "  "+elem.Name)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
