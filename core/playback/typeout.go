package playback

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/josephlewis42/demosh/core/term"
)

// Action is what the presenter asked for with a keystroke.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionFastForward
	ActionRun
	ActionRepeat
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionQuit:
		return "quit"
	case ActionFastForward:
		return "fastforward"
	case ActionRun:
		return "run"
	case ActionRepeat:
		return "repeat"
	case ActionSkip:
		return "skip"
	default:
		return "none"
	}
}

// actionKeys maps keystrokes to actions; anything else is ignored.
var actionKeys = map[byte]Action{
	'Q':  ActionQuit,
	' ':  ActionFastForward,
	'\n': ActionRun,
	'\r': ActionRun,
	'-':  ActionRepeat,
	'+':  ActionSkip,
}

// ActionForKey returns the action bound to key, if any.
func ActionForKey(key byte) (Action, bool) {
	a, ok := actionKeys[key]
	return a, ok
}

func (e *Engine) write(text string) {
	io.WriteString(e.opts.Out, text)
}

// color returns the escape sequence that starts text's color: comments are
// highlighted, everything else uses the terminal default.
func (e *Engine) color(text string) string {
	if strings.HasPrefix(text, "#") {
		return e.opts.Caps.Color(e.opts.Colors.Comment)
	}
	return ""
}

// display writes a line if the engine is showing or force is set. Runs of
// blank lines collapse into one.
func (e *Engine) display(text string, newline, force bool) {
	if !e.showing && !force {
		return
	}
	if text == "" && !e.echoBlanks && !force {
		return
	}

	var sb strings.Builder
	sb.WriteString(e.color(text))
	sb.WriteString(text)
	sb.WriteString(e.opts.Caps.Reset())
	if newline {
		sb.WriteString("\n")
	}
	e.write(sb.String())

	e.echoBlanks = text != ""
}

func (e *Engine) displayMarkdown(text string) {
	if !e.showing {
		return
	}
	e.write(e.colorize(e.opts.Dispatcher.ExpandEnv(text)) + e.opts.Caps.Reset())
	e.echoBlanks = true
}

// warn prints a notice to the presenter regardless of visibility.
func (e *Engine) warn(text string) {
	e.write(e.opts.Caps.Color(e.opts.Colors.Warning) + text + e.opts.Caps.Reset() + "\n")
}

// Print implements shell.Console for the print builtin.
func (e *Engine) Print(text string) {
	e.display(text, true, true)
}

// typeOut writes prefix immediately then text one character at a time,
// polling for a keystroke between characters. An action key other than quit
// flushes the rest of text at once. It returns the last action read.
func (e *Engine) typeOut(prefix, text, suffix string, stripComments bool) (Action, error) {
	action := ActionNone

	e.write(e.color(prefix) + prefix)
	if stripComments {
		text = strings.ReplaceAll(text, "\n#", "\n")
	}

	err := e.opts.Terminal.Scoped(term.ModeRaw, func() error {
		defer e.write(e.opts.Caps.Reset())

	typing:
		for i := 0; i < len(text); {
			_, size := utf8.DecodeRuneInString(text[i:])
			e.write(text[i : i+size])
			i += size

			key, ok, err := e.opts.Terminal.PollKey(e.opts.Delay())
			switch {
			case errors.Is(err, io.EOF):
				action = ActionQuit
				break typing
			case err != nil:
				return err
			case !ok:
				continue
			}

			a, known := ActionForKey(key)
			if !known {
				action = ActionNone
				continue
			}
			action = a
			if a != ActionQuit {
				e.write(text[i:])
			}
			break
		}

		if suffix != "" {
			e.write(suffix)
		}
		return nil
	})
	return action, err
}

// waitToProceed blocks until the presenter presses an action key. Closed
// input counts as quit.
func (e *Engine) waitToProceed() (Action, error) {
	action := ActionNone

	err := e.opts.Terminal.Scoped(term.ModeCbreak, func() error {
		for {
			key, err := e.opts.Terminal.ReadKey()
			switch {
			case errors.Is(err, io.EOF):
				action = ActionQuit
				return nil
			case err != nil:
				return err
			}

			if a, ok := ActionForKey(key); ok {
				action = a
				return nil
			}
		}
	})
	return action, err
}

func trimRight(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}
