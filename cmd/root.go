package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/josephlewis42/demosh/core/config"
	"github.com/josephlewis42/demosh/core/logger"
	"github.com/josephlewis42/demosh/core/playback"
	"github.com/josephlewis42/demosh/core/shell"
	"github.com/josephlewis42/demosh/core/term"
	"github.com/josephlewis42/demosh/core/termcap"
	"github.com/josephlewis42/demosh/core/ttylog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	xterm "golang.org/x/term"
)

var (
	cfgPath    string
	debug      bool
	logFormat  string
	logFile    string
	recordPath string
	startShown bool
	noColor    bool
)

func loadConfig(logger *log.Logger) (*config.Configuration, error) {
	configuration, err := config.Load(afero.NewOsFs(), cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		logger.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// newLogger builds the structured logger from the debug flags. The returned
// func closes the log file, if any.
func newLogger(cmd *cobra.Command) (*slog.Logger, func(), error) {
	opts := logger.Options{Level: "warn", Format: logFormat, Console: cmd.ErrOrStderr()}
	if debug {
		opts.Level = "debug"
	}

	closer := func() {}
	if logFile != "" {
		fd, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		opts.File = fd
		closer = func() { fd.Close() }
	}

	return logger.New(opts), closer, nil
}

// capabilities picks how colors and decorations are rendered.
func capabilities(session *term.Session, appLog *slog.Logger) termcap.Provider {
	if noColor || !session.IsTerminal() {
		return termcap.Plain{}
	}

	caps, err := termcap.Load("")
	if err != nil {
		appLog.Warn("falling back to ANSI colors", "error", err)
		return termcap.ANSI{}
	}
	return caps
}

// startRecording wraps the output streams so everything the audience sees is
// saved as an asciicast.
func startRecording(path, title string, stdout, stderr io.Writer) (*ttylog.Recorder, io.Writer, io.Writer, func() error, error) {
	fd, err := os.Create(path)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	header := ttylog.AsciicastHeader{
		Title: title,
		Env:   map[string]string{"TERM": os.Getenv("TERM"), "SHELL": os.Getenv("SHELL")},
	}
	if width, height, err := xterm.GetSize(int(os.Stdout.Fd())); err == nil {
		header.Width, header.Height = width, height
	}

	rec := ttylog.NewRecorder(ttylog.NewAsciicastLogSink(fd, header))
	return rec, rec.Writer(ttylog.FDStdout, stdout), rec.Writer(ttylog.FDStderr, stderr), fd.Close, nil
}

// rootCmd plays a demo script.
var rootCmd = &cobra.Command{
	Use:   "demosh [flags] SCRIPT [ARGS...]",
	Short: "Run shell demos from annotated scripts",
	Long: `Plays a shell or Markdown script as a live demo: each command is typed
out, waits for RETURN, then runs. Directives in "#@" comments control pacing.

Keys: RETURN runs, SPACE finishes typing, "-" repeats the previous command,
"+" skips the current one and "Q" quits.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		session, err := term.Open(os.Stdin)
		if err != nil {
			return err
		}
		defer session.Restore()

		configuration, err := loadConfig(log.New(cmd.ErrOrStderr(), "", 0))
		if err != nil {
			return err
		}

		appLog, closeLog, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer closeLog()

		scriptPath := args[0]
		stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

		if recordPath != "" {
			rec, recOut, recErr, closeRec, err := startRecording(recordPath, filepath.Base(scriptPath), stdout, stderr)
			if err != nil {
				return err
			}
			defer func() {
				if err := rec.Err(); err != nil {
					appLog.Warn("recording incomplete", "error", err)
				}
				closeRec()
			}()
			stdout, stderr = recOut, recErr
		}

		self, err := os.Executable()
		if err != nil {
			self = os.Args[0]
		}

		state, err := shell.New(shell.Options{
			Shell:         configuration.Shell,
			Script:        scriptPath,
			Args:          args[1:],
			Self:          self,
			HookPrefix:    configuration.HookPrefix,
			ExitOnFailure: configuration.ExitOnFailure,
			Stdin:         os.Stdin,
			Stdout:        stdout,
			Stderr:        stderr,
			Logger:        appLog,
		})
		if err != nil {
			return err
		}

		engine, err := playback.Open(playback.Options{
			Dispatcher: state,
			Terminal:   session,
			Caps:       capabilities(session, appLog),
			Out:        stdout,
			Fs:         afero.NewOsFs(),
			Typing:     configuration.Typing,
			Colors:     configuration.Colors,
			Showing:    configuration.StartShowing || startShown,
			Logger:     appLog,
		}, scriptPath)
		if err != nil {
			return err
		}

		release := shell.TrapSignals()
		defer release()

		return engine.Run(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cobra.CheckErr(color.New(color.FgRed).Sprint(err))
	}
}

func init() {
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config directory or config.yaml path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug messages to stderr")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "stderr log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append JSON logs to this file")

	rootCmd.Flags().StringVar(&recordPath, "record", "", fmt.Sprintf("record the session to an asciicast (.%s) file", ttylog.AsciicastFileExt))
	rootCmd.Flags().BoolVar(&startShown, "show", false, "start with display enabled instead of waiting for #@SHOW")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colors and decorations")
}
