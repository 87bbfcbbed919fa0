package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/josephlewis42/demosh/core/ttylog"
	"github.com/spf13/cobra"
)

var (
	fixNewlines   bool
	idleTimeLimit time.Duration
)

var logsCmd = &cobra.Command{
	Use:     "logs",
	Aliases: []string{"log"},
	Short:   "Explore sessions recorded with --record.",
}

// playCommand replays a recording at the speed it was made
var playCommand = &cobra.Command{
	Use:   "play FILE.cast",
	Short: "Replay a recorded demo in the terminal.",
	Long:  `Plays a recorded demo back to the current terminal.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		source, err := createLogSource(args[0], fd)
		if err != nil {
			return err
		}

		sink := ttylog.NewClientOutput(cmd.OutOrStdout())
		sink = ttylog.NewRealTimePlayback(idleTimeLimit, sink)
		return ttylog.Replay(source, applyMiddleware(sink))
	},
}

// catCommand prints a recording without pauses
var catCommand = &cobra.Command{
	Use:   "cat FILE.cast",
	Short: "Print full output of a recorded demo to a terminal.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		source, err := createLogSource(args[0], fd)
		if err != nil {
			return err
		}
		sink := ttylog.NewClientOutput(cmd.OutOrStdout())

		return ttylog.Replay(source, applyMiddleware(sink))
	},
}

func createLogSource(name string, r io.Reader) (ttylog.LogSource, error) {
	switch ext := strings.TrimPrefix(filepath.Ext(name), "."); ext {
	case ttylog.AsciicastFileExt:
		return ttylog.NewAsciicastLogSource(r), nil
	default:
		return nil, fmt.Errorf("unsupported recording type %q, expected .%s", ext, ttylog.AsciicastFileExt)
	}
}

func applyMiddleware(sink ttylog.LogSink) ttylog.LogSink {
	if fixNewlines {
		sink = ttylog.NewCRLFAdapter(sink)
	}

	return sink
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(playCommand)
	logsCmd.AddCommand(catCommand)

	for _, cmd := range []*cobra.Command{playCommand, catCommand} {
		cmd.Flags().BoolVar(&fixNewlines, "crlf", false, "Rewrite bare newlines as CRLF.")
	}

	// cat doesn't allow idle time
	for _, cmd := range []*cobra.Command{playCommand} {
		cmd.Flags().DurationVarP(&idleTimeLimit, "idle-time-limit", "i", 3*time.Second, "Maximum time output can be idle. (e.g. 3s, 2m, 100ms)")
	}
}
