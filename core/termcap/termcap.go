// Package termcap resolves terminal capability strings used to decorate
// playback output.
package termcap

import (
	"fmt"
	"sync"

	"github.com/xo/terminfo"
)

// Capability names understood by Lookup.
const (
	CapSetForeground = "setaf"
	CapReset         = "sgr0"
	CapBold          = "bold"
	CapUnderline     = "smul"
)

var capIndex = map[string]int{
	CapSetForeground: terminfo.SetAForeground,
	CapReset:         terminfo.ExitAttributeMode,
	CapBold:          terminfo.EnterBoldMode,
	CapUnderline:     terminfo.EnterUnderlineMode,
}

// Provider hands out the escape sequences used for colored output.
type Provider interface {
	// Color starts the given foreground color.
	Color(n int) string
	// Bold starts bold text.
	Bold() string
	// Underline starts underlined text.
	Underline() string
	// Reset ends all attributes.
	Reset() string
}

// Terminfo is a Provider backed by the terminfo database. Lookups are
// memoized.
type Terminfo struct {
	ti *terminfo.Terminfo

	mu    sync.Mutex
	cache map[string]string
}

var _ Provider = (*Terminfo)(nil)

// Load reads the terminfo entry for the named terminal, or for $TERM if name
// is empty.
func Load(name string) (*Terminfo, error) {
	var (
		ti  *terminfo.Terminfo
		err error
	)
	if name == "" {
		ti, err = terminfo.LoadFromEnv()
	} else {
		ti, err = terminfo.Load(name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading terminfo: %w", err)
	}

	return &Terminfo{ti: ti, cache: make(map[string]string)}, nil
}

// Lookup returns the expanded capability string, or "" if the terminal lacks
// it.
func (t *Terminfo) Lookup(name string, params ...interface{}) string {
	key := fmt.Sprint(append([]interface{}{name}, params...)...)

	t.mu.Lock()
	defer t.mu.Unlock()

	if cached, ok := t.cache[key]; ok {
		return cached
	}

	out := ""
	if idx, ok := capIndex[name]; ok && t.ti.Has(idx) {
		out = t.ti.Printf(idx, params...)
	}
	t.cache[key] = out
	return out
}

// Color implements Provider.Color.
func (t *Terminfo) Color(n int) string {
	return t.Lookup(CapSetForeground, n)
}

// Bold implements Provider.Bold.
func (t *Terminfo) Bold() string {
	return t.Lookup(CapBold)
}

// Underline implements Provider.Underline.
func (t *Terminfo) Underline() string {
	return t.Lookup(CapUnderline)
}

// Reset implements Provider.Reset.
func (t *Terminfo) Reset() string {
	return t.Lookup(CapReset)
}

// Plain is a Provider that never emits escape sequences.
type Plain struct{}

var _ Provider = Plain{}

func (Plain) Color(int) string  { return "" }
func (Plain) Bold() string      { return "" }
func (Plain) Underline() string { return "" }
func (Plain) Reset() string     { return "" }

// ANSI is a Provider emitting fixed ECMA-48 sequences, for terminals without a
// terminfo entry.
type ANSI struct{}

var _ Provider = ANSI{}

func (ANSI) Color(n int) string {
	if n < 8 {
		return fmt.Sprintf("\x1b[3%dm", n)
	}
	return fmt.Sprintf("\x1b[38;5;%dm", n)
}
func (ANSI) Bold() string      { return "\x1b[1m" }
func (ANSI) Underline() string { return "\x1b[4m" }
func (ANSI) Reset() string     { return "\x1b(B\x1b[m" }
