package playback

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes the engine's command list followed by every macro it defines,
// one command per line.
func (e *Engine) Dump(w io.Writer) error {
	return e.dump(w, "")
}

func (e *Engine) dump(w io.Writer, indent string) error {
	for _, cmd := range e.commands {
		text := strings.ReplaceAll(cmd.String(), "\n", "\n"+indent+"  ")
		if _, err := fmt.Fprintf(w, "%s%s\n", indent, text); err != nil {
			return err
		}
	}

	for _, m := range e.macros {
		if _, err := fmt.Fprintf(w, "%smacro %s:\n", indent, m.name); err != nil {
			return err
		}
		if err := m.engine.dump(w, indent+"  "); err != nil {
			return err
		}
	}
	return nil
}

// Macros returns the names of the macros defined by the script, in order.
func (e *Engine) Macros() []string {
	var out []string
	for _, m := range e.macros {
		out = append(out, m.name)
	}
	return out
}
