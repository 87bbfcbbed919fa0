package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/josephlewis42/demosh/core/shell"
	"github.com/spf13/cobra"
)

// lineConsole prints builtin output above the prompt.
type lineConsole struct {
	out io.Writer
}

func (c *lineConsole) Print(text string) {
	fmt.Fprintln(c.out, text)
}

var _ shell.Console = (*lineConsole)(nil)

// playgroundPrompt shows the directory commands will run in.
func playgroundPrompt(state *shell.State) string {
	return fmt.Sprintf("demosh:%s> ", filepath.Base(state.Cwd()))
}

// runPlayground feeds lines from rl to state until input closes.
func runPlayground(ctx context.Context, rl *readline.Instance, state *shell.State, logger *log.Logger) int {
	console := &lineConsole{out: rl.Stdout()}
	failed := color.New(color.FgRed)

	for {
		rl.SetPrompt(playgroundPrompt(state))
		line, err := rl.Readline()

		switch {
		case err == io.EOF:
			return 0
		case err == readline.ErrInterrupt:
			// Interrupt clears line.
			continue
		case err != nil:
			logger.Printf("Error readline: %v", err)
			continue
		case strings.TrimSpace(line) == "":
			continue
		}

		if rc := state.Run(ctx, console, line); rc != 0 {
			failed.Fprintf(rl.Stderr(), "exit status %d\n", rc)
			if state.ExitOnFailure() {
				return rc
			}
		}
	}
}

// playgroundCmd runs the demo interpreter interactively for trying out lines.
var playgroundCmd = &cobra.Command{
	Use:   "playground [ARGS...]",
	Short: "Type lines into the demo interpreter without a script.",
	Long: `Runs lines through the same interpreter scripts use: assignments and
function definitions persist, and cd, set and print behave as they do in a demo.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		playgroundLogger := log.New(cmd.ErrOrStderr(), "[playground] ", 0)
		cfg, err := loadConfig(playgroundLogger)
		if err != nil {
			return err
		}

		appLog, closeLog, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer closeLog()

		rl, err := readline.NewEx(&readline.Config{
			Stdin:  readline.NewCancelableStdin(os.Stdin),
			Stdout: cmd.OutOrStdout(),
			Stderr: cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		defer rl.Close()

		state, err := shell.New(shell.Options{
			Shell:         cfg.Shell,
			Script:        "playground",
			Args:          args,
			HookPrefix:    cfg.HookPrefix,
			ExitOnFailure: cfg.ExitOnFailure,
			Stdout:        rl.Stdout(),
			Stderr:        rl.Stderr(),
			Logger:        appLog,
		})
		if err != nil {
			return err
		}

		playgroundLogger.Printf("Using %s; builtins: %s", cfg.Shell, strings.Join(state.Builtins(), ", "))
		playgroundLogger.Println(strings.Repeat("=", 80))

		exitCode := runPlayground(cmd.Context(), rl, state, playgroundLogger)
		fmt.Fprintf(cmd.OutOrStdout(), "Exit code: %d\n", exitCode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playgroundCmd)
}
