package playback

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/josephlewis42/demosh/core/script"
	"github.com/spf13/afero"
)

// BuiltinsImport is the import path of the bundled macro library.
const BuiltinsImport = "@builtins"

//go:embed builtins/builtins.sh
var builtinMacros []byte

// BuiltinMacros returns the source of the bundled macro library.
func BuiltinMacros() string {
	return string(builtinMacros)
}

// load parses r and appends its commands, tagging each one with conds.
func (e *Engine) load(name string, mode script.Mode, r io.Reader, conds []string) error {
	parser := script.NewParser(name, mode, r)

	for {
		elem, err := parser.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := e.add(elem, conds); err != nil {
			return err
		}
	}
}

func (e *Engine) add(elem *script.Element, conds []string) error {
	switch elem.Kind {
	case script.KindCommand:
		cmd := script.NewCommand(elem.Text)
		cmd.Conditions = conds
		e.commands = append(e.commands, cmd)

	case script.KindComment:
		cmd := script.NewComment(elem.Text, elem.Markdown)
		cmd.Conditions = conds
		e.commands = append(e.commands, cmd)

	case script.KindImport:
		return e.importFile(elem.Path, conds)

	case script.KindHook:
		e.opts.Dispatcher.AddHook(elem.Name, elem.Suffix)

	case script.KindMacro:
		opts := e.opts
		opts.Showing = false

		child := newEngine(opts, elem.Name)
		body := strings.NewReader(strings.Join(elem.Body, ""))
		if err := child.load(elem.Name, script.ModeShell, body, nil); err != nil {
			return fmt.Errorf("macro %q: %w", elem.Name, err)
		}

		e.macros = append(e.macros, &namedEngine{name: elem.Name, engine: child})
		e.opts.Dispatcher.SetMacro(elem.Name, child)

	case script.KindConditional:
		nested := make([]string, len(conds), len(conds)+1)
		copy(nested, conds)
		nested = append(nested, elem.Name)

		body := strings.NewReader(strings.Join(elem.Body, ""))
		if err := e.load(e.name, script.ModeShell, body, nested); err != nil {
			return fmt.Errorf("ifhook %q: %w", elem.Name, err)
		}

	default:
		return fmt.Errorf("unknown element %v", elem.Kind)
	}

	return nil
}

// importFile splices another script in place. Paths are resolved through the
// engine's filesystem; the bundled library is always available.
func (e *Engine) importFile(path string, conds []string) error {
	if path == BuiltinsImport {
		return e.load(path, script.ModeShell, bytes.NewReader(builtinMacros), conds)
	}

	fd, err := e.opts.Fs.Open(path)
	if err != nil {
		return fmt.Errorf("import %q: %w", path, err)
	}
	defer fd.Close()

	if err := e.load(path, script.ModeForPath(path), fd, conds); err != nil {
		return fmt.Errorf("import %q: %w", path, err)
	}
	return nil
}

// Open builds an engine from a script file on fs. The parse mode is chosen by
// file extension.
func Open(opts Options, path string) (*Engine, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	fd, err := opts.Fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	return New(opts, path, script.ModeForPath(path), fd)
}
