// Package playback walks a parsed demo script, echoing each command with a
// typewriter effect and running it once the presenter is ready.
package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/josephlewis42/demosh/core/config"
	"github.com/josephlewis42/demosh/core/logger"
	"github.com/josephlewis42/demosh/core/script"
	"github.com/josephlewis42/demosh/core/shell"
	"github.com/josephlewis42/demosh/core/term"
	"github.com/josephlewis42/demosh/core/termcap"
	"github.com/spf13/afero"
)

// Dispatcher runs command lines and holds the state they share.
// *shell.State implements it.
type Dispatcher interface {
	Run(ctx context.Context, console shell.Console, cmdline string) int
	ExpandEnv(text string) string
	ExitOnFailure() bool

	AddHook(name, suffix string)
	HookActive(name string) bool
	SetMacro(name string, m shell.Macro)
}

// Terminal is the presenter's keyboard. *term.Session implements it.
type Terminal interface {
	Scoped(mode term.Mode, fn func() error) error
	ReadKey() (byte, error)
	PollKey(timeout time.Duration) (byte, bool, error)
}

var (
	_ Dispatcher  = (*shell.State)(nil)
	_ Terminal    = (*term.Session)(nil)
	_ shell.Macro = (*Engine)(nil)
)

// Options are shared by an engine and every macro engine built from it.
type Options struct {
	Dispatcher Dispatcher
	Terminal   Terminal
	Caps       termcap.Provider

	// Out receives everything the engine displays.
	Out io.Writer
	// Fs resolves imports.
	Fs afero.Fs

	Typing config.Typing
	Colors config.Colors

	// Showing starts the engine with display enabled. Macros always start
	// hidden.
	Showing bool

	// Delay picks the pause after each typed character. Defaults to a uniform
	// random value within Typing.
	Delay func() time.Duration

	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Caps == nil {
		o.Caps = termcap.Plain{}
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	if o.Delay == nil {
		o.Delay = randomDelay(time.Duration(o.Typing.MinDelay), time.Duration(o.Typing.MaxDelay))
	}
}

func randomDelay(min, max time.Duration) func() time.Duration {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return func() time.Duration {
		if max <= min {
			return min
		}
		return min + time.Duration(rng.Int63n(int64(max-min)))
	}
}

// Engine plays one command list. Each macro is played by an Engine of its
// own, so invoking a macro always starts from its first command.
type Engine struct {
	opts Options
	name string
	log  *slog.Logger

	commands []*script.Command
	macros   []*namedEngine

	cmdIndex   int
	skipping   bool
	showing    bool
	overrides  script.Overrides
	echoBlanks bool
}

type namedEngine struct {
	name   string
	engine *Engine
}

// New parses the script in r and builds an engine for it. Imports are
// expanded inline, hooks are declared and macros registered with the
// dispatcher.
func New(opts Options, name string, mode script.Mode, r io.Reader) (*Engine, error) {
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("playback: a Dispatcher is required")
	}
	if opts.Terminal == nil {
		return nil, fmt.Errorf("playback: a Terminal is required")
	}
	if opts.Out == nil {
		return nil, fmt.Errorf("playback: an output writer is required")
	}
	opts.setDefaults()

	e := newEngine(opts, name)
	if err := e.load(name, mode, r, nil); err != nil {
		return nil, err
	}
	return e, nil
}

func newEngine(opts Options, name string) *Engine {
	return &Engine{
		opts:    opts,
		name:    name,
		log:     opts.Logger.With(logger.KeyEngine, name),
		showing: opts.Showing,
	}
}

// Name is the script or macro name the engine was built from.
func (e *Engine) Name() string {
	return e.name
}

// Commands returns the engine's command list.
func (e *Engine) Commands() []*script.Command {
	return e.commands
}

// Run plays the command list from the start. It returns when the list is
// exhausted, the presenter quits, or a command fails with exit on failure
// set.
func (e *Engine) Run(ctx context.Context) error {
	e.cmdIndex = 0

	for e.cmdIndex < len(e.commands) {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd := e.commands[e.cmdIndex]
		if !e.showing {
			cmd.Hidden = true
		}
		e.cmdIndex++

		if e.skipping {
			if cmd.Text == "" || cmd.Directive() != "SHOW" {
				continue
			}
			e.skipping = false
		}

		if !e.conditionsMet(cmd) {
			continue
		}

		if cmd.IsBlank() {
			e.display("", true, false)
			continue
		}

		if cmd.IsComment() {
			if cmd.IsHiddenComment() {
				continue
			}

			if cmd.IsMeta() {
				if e.handleDirective(cmd.Directive()) {
					continue
				}
				// Standalone directives run below, like commands.
			} else {
				if err := e.showComment(cmd); err != nil {
					return err
				}
				continue
			}
		}

		stop, err := e.execute(ctx, cmd)
		if err != nil || stop {
			return err
		}
	}

	return nil
}

// conditionsMet reports whether every hook guarding cmd is active.
func (e *Engine) conditionsMet(cmd *script.Command) bool {
	for _, hook := range cmd.Conditions {
		if !e.opts.Dispatcher.HookActive(hook) {
			return false
		}
	}
	return true
}

func (e *Engine) showComment(cmd *script.Command) error {
	switch {
	case cmd.Markdown:
		e.displayMarkdown(cmd.Text)
	case strings.HasPrefix(cmd.Text, script.SlowPrintPrefix):
		if !e.showing {
			return nil
		}
		text := strings.TrimSpace(strings.TrimPrefix(cmd.Text, script.SlowPrintPrefix))
		_, err := e.typeOut("$ ", text, "\n", true)
		return err
	default:
		e.display(e.opts.Dispatcher.ExpandEnv(trimRight(cmd.Text)), true, false)
	}
	return nil
}

// execute runs the per-command loop: echo, wait for the presenter, then run,
// skip or rewind. It reports whether playback should stop.
func (e *Engine) execute(ctx context.Context, stored *script.Command) (bool, error) {
	cmd := stored.Copy()
	cmd.Apply(e.overrides)
	e.overrides = script.Overrides{}

	var (
		action  Action
		err     error
		typeout = cmd.Typeout
	)

	for {
		action = ActionNone

		switch {
		case e.showing && cmd.TypeCommand:
			text := e.opts.Dispatcher.ExpandEnv(trimRight(cmd.Text))

			if typeout {
				suffix := ""
				if !cmd.WaitBefore {
					suffix = "\n"
				}
				if action, err = e.typeOut("$ ", text, suffix, true); err != nil {
					return true, err
				}
			} else {
				e.display("$ "+text, !cmd.WaitBefore, false)
			}

			if (action == ActionNone || action == ActionFastForward) && cmd.WaitBefore {
				if action, err = e.waitToProceed(); err != nil {
					return true, err
				}
			}

			if cmd.WaitBefore {
				e.write("\n")
			}

		case !e.showing && cmd.ExplicitWait:
			if action, err = e.waitToProceed(); err != nil {
				return true, err
			}
		}

		if action != ActionRepeat {
			break
		}

		// Repeat before running: the cursor is already past this command, so
		// the previous one is two back.
		if !e.rewind(2) {
			typeout = false
			continue
		}
		return false, nil
	}

	e.echoBlanks = true

	if action != ActionSkip && action != ActionQuit {
		line := cmd.Runnable()
		rc := e.opts.Dispatcher.Run(ctx, e, line)
		e.log.Debug(logger.MsgDispatch, logger.KeyCommand, line, logger.KeyRC, rc)

		if rc != 0 && e.opts.Dispatcher.ExitOnFailure() {
			e.log.Info("stopping after failed command", logger.KeyCommand, line, logger.KeyRC, rc)
			return true, nil
		}

		if e.showing && cmd.WaitAfter {
			if action, err = e.waitToProceed(); err != nil {
				return true, err
			}
		}
	}

	switch action {
	case ActionSkip:
		e.log.Debug(logger.MsgSkip, logger.KeyCommand, trimRight(cmd.Text))
		e.warn("...skipping")
	case ActionQuit:
		e.log.Debug(logger.MsgQuit)
		return true, nil
	case ActionRepeat:
		e.rewind(1)
	}

	return false, nil
}

// rewind moves the cursor back to the nearest earlier command worth
// repeating, searching from delta places back. The rewound command is shown
// again without the typewriter effect.
func (e *Engine) rewind(delta int) bool {
	idx := e.findPrevious(delta)
	if idx < 0 {
		e.warn("...nothing earlier to repeat!")
		return false
	}

	e.log.Debug(logger.MsgRewind, logger.KeyCommand, trimRight(e.commands[idx].Text))
	e.cmdIndex = idx
	e.overrides = script.Overrides{
		TypeCommand: script.Flag(true),
		Typeout:     script.Flag(false),
		WaitBefore:  script.Flag(true),
	}
	return true
}

// findPrevious returns the index of the nearest visible, non-comment,
// non-blank command at or before cmdIndex-delta, or -1.
func (e *Engine) findPrevious(delta int) int {
	for idx := e.cmdIndex - delta; idx >= 0; idx-- {
		cmd := e.commands[idx]
		if !cmd.Hidden && !cmd.IsComment() && !cmd.IsBlank() {
			return idx
		}
	}
	return -1
}
