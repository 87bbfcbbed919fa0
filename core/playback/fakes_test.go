package playback

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/josephlewis42/demosh/core/config"
	"github.com/josephlewis42/demosh/core/script"
	"github.com/josephlewis42/demosh/core/shell"
	"github.com/josephlewis42/demosh/core/term"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// fakeTerminal replays scripted keystrokes. keys feed ReadKey, typed feeds
// PollKey; an exhausted keys queue reads as closed input.
type fakeTerminal struct {
	keys  []byte
	typed []byte
	modes []term.Mode
}

var _ Terminal = (*fakeTerminal)(nil)

func (f *fakeTerminal) Scoped(mode term.Mode, fn func() error) error {
	f.modes = append(f.modes, mode)
	return fn()
}

func (f *fakeTerminal) ReadKey() (byte, error) {
	if len(f.keys) == 0 {
		return 0, io.EOF
	}
	key := f.keys[0]
	f.keys = f.keys[1:]
	return key, nil
}

func (f *fakeTerminal) PollKey(time.Duration) (byte, bool, error) {
	if len(f.typed) == 0 {
		return 0, false, nil
	}
	key := f.typed[0]
	f.typed = f.typed[1:]
	return key, true, nil
}

// fakeDispatcher records every line it is asked to run.
type fakeDispatcher struct {
	ran           []string
	rcs           map[string]int
	env           map[string]string
	hooks         map[string]string
	active        map[string]bool
	macros        map[string]shell.Macro
	exitOnFailure bool
}

var _ Dispatcher = (*fakeDispatcher)(nil)

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		rcs:    map[string]int{},
		env:    map[string]string{},
		hooks:  map[string]string{},
		active: map[string]bool{},
		macros: map[string]shell.Macro{},
	}
}

func (d *fakeDispatcher) Run(ctx context.Context, console shell.Console, cmdline string) int {
	d.ran = append(d.ran, cmdline)

	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return 0
	}
	if m, ok := d.macros[fields[0]]; ok {
		if err := m.Run(ctx); err != nil {
			return 1
		}
		return 0
	}
	if fields[0] == "print" {
		console.Print(strings.Join(fields[1:], " "))
	}
	return d.rcs[cmdline]
}

func (d *fakeDispatcher) ExpandEnv(text string) string {
	for k, v := range d.env {
		text = strings.ReplaceAll(text, "${"+k+"}", v)
	}
	return text
}

func (d *fakeDispatcher) ExitOnFailure() bool {
	return d.exitOnFailure
}

func (d *fakeDispatcher) AddHook(name, suffix string) {
	d.hooks[name] = suffix
}

func (d *fakeDispatcher) HookActive(name string) bool {
	return d.active[name]
}

func (d *fakeDispatcher) SetMacro(name string, m shell.Macro) {
	d.macros[name] = m
}

type harness struct {
	engine *Engine
	disp   *fakeDispatcher
	tty    *fakeTerminal
	out    *bytes.Buffer
}

type harnessOption func(*Options)

func showing(o *Options) {
	o.Showing = true
}

func withFs(fs afero.Fs) harnessOption {
	return func(o *Options) {
		o.Fs = fs
	}
}

func newHarness(t *testing.T, input string, keys string, opts ...harnessOption) *harness {
	t.Helper()
	return newHarnessMode(t, script.ModeShell, input, keys, opts...)
}

func newHarnessMode(t *testing.T, mode script.Mode, input string, keys string, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		disp: newFakeDispatcher(),
		tty:  &fakeTerminal{keys: []byte(keys)},
		out:  &bytes.Buffer{},
	}

	o := Options{
		Dispatcher: h.disp,
		Terminal:   h.tty,
		Out:        h.out,
		Fs:         afero.NewMemMapFs(),
		Colors:     config.Default().Colors,
		Delay:      func() time.Duration { return 0 },
	}
	for _, opt := range opts {
		opt(&o)
	}

	engine, err := New(o, "demo.sh", mode, strings.NewReader(input))
	require.NoError(t, err)
	h.engine = engine
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Run(context.Background()))
}
