package playback

import (
	"bytes"
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephlewis42/demosh/core/script"
	"github.com/josephlewis42/demosh/core/shell"
	"github.com/josephlewis42/demosh/core/term"
	"github.com/josephlewis42/demosh/core/termcap"
	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_requiredOptions(t *testing.T) {
	cases := map[string]Options{
		"no dispatcher": {Terminal: &fakeTerminal{}, Out: &bytes.Buffer{}},
		"no terminal":   {Dispatcher: newFakeDispatcher(), Out: &bytes.Buffer{}},
		"no output":     {Dispatcher: newFakeDispatcher(), Terminal: &fakeTerminal{}},
	}

	for tn, opts := range cases {
		t.Run(tn, func(t *testing.T) {
			_, err := New(opts, "demo.sh", script.ModeShell, strings.NewReader("echo hi\n"))
			assert.Error(t, err)
		})
	}
}

func TestEngine_Run(t *testing.T) {
	cases := map[string]struct {
		input   string
		keys    string
		showing bool
		env     map[string]string

		wantRan    []string
		wantOutput string
	}{
		"noshow runs without echo": {
			input:   "#@noshow\necho hi\n",
			showing: true,
			wantRan: []string{"echo hi"},
		},
		"override lasts one command": {
			input:      "#@noshow\necho one\necho two\n",
			keys:       "\n",
			showing:    true,
			wantRan:    []string{"echo one", "echo two"},
			wantOutput: "$ echo two\n",
		},
		"hidden commands run without waiting": {
			input:   "echo one\necho two\n",
			wantRan: []string{"echo one", "echo two"},
		},
		"skip": {
			input:      "echo A\necho B\n",
			keys:       "+\n",
			showing:    true,
			wantRan:    []string{"echo B"},
			wantOutput: "$ echo A\n...skipping\n$ echo B\n",
		},
		"quit": {
			input:      "echo A\necho B\n",
			keys:       "Q",
			showing:    true,
			wantOutput: "$ echo A\n",
		},
		"closed input quits": {
			input:      "echo A\n",
			showing:    true,
			wantOutput: "$ echo A\n",
		},
		"carriage return runs": {
			input:      "echo A\n",
			keys:       "x\r",
			showing:    true,
			wantRan:    []string{"echo A"},
			wantOutput: "$ echo A\n",
		},
		"repeat before running": {
			input:      "echo A\n# note\necho C\n",
			keys:       "\n-\n\n",
			showing:    true,
			wantRan:    []string{"echo A", "echo A", "echo C"},
			wantOutput: "$ echo A\n# note\n$ echo C\n$ echo A\n# note\n$ echo C\n",
		},
		"repeat after running": {
			input:      "echo A\n#@waitafter\necho B\n",
			keys:       "\n\n-\n",
			showing:    true,
			wantRan:    []string{"echo A", "echo B", "echo B"},
			wantOutput: "$ echo A\n$ echo B\n$ echo B\n",
		},
		"nothing earlier to repeat": {
			input:      "echo A\n",
			keys:       "-\n",
			showing:    true,
			wantRan:    []string{"echo A"},
			wantOutput: "$ echo A\n...nothing earlier to repeat!\n$ echo A\n",
		},
		"blank lines collapse": {
			input:      "echo a\n\n\n\necho b\n",
			keys:       "\n\n",
			showing:    true,
			wantRan:    []string{"echo a", "echo b"},
			wantOutput: "$ echo a\n\n$ echo b\n",
		},
		"blank lines while hidden never render": {
			input:      "\n\n#@SHOW\n\necho b\n",
			keys:       "\n",
			wantRan:    []string{"echo b"},
			wantOutput: "$ echo b\n",
		},
		"skip until show": {
			input:      "#@SKIP\necho skipped\n#@SHOW\necho shown\n",
			keys:       "\n",
			wantRan:    []string{"echo shown"},
			wantOutput: "$ echo shown\n",
		},
		"hide": {
			input:   "#@HIDE\necho quiet\n",
			showing: true,
			wantRan: []string{"echo quiet"},
		},
		"wait while hidden": {
			input:   "#@wait\necho after\n",
			keys:    "\n",
			wantRan: []string{"wait", "echo after"},
		},
		"wait while hidden then quit": {
			input: "#@wait\necho after\n",
		},
		"print while showing waits after": {
			input:      "#@print hello there\necho next\n",
			keys:       "\n\n",
			showing:    true,
			wantRan:    []string{"print hello there", "echo next"},
			wantOutput: "hello there\n$ echo next\n",
		},
		"print while hidden": {
			input:      "#@print hello\n",
			wantRan:    []string{"print hello"},
			wantOutput: "hello\n",
		},
		"immediate": {
			input:   "#@immed\necho now\n",
			showing: true,
			wantRan: []string{"echo now"},
		},
		"unknown directive runs as command": {
			input:   "#@show_slides\n",
			showing: true,
			wantRan: []string{"show_slides"},
		},
		"hidden comments": {
			input:      "#!/bin/bash\n## internal\necho x\n",
			keys:       "\n",
			showing:    true,
			wantRan:    []string{"echo x"},
			wantOutput: "$ echo x\n",
		},
		"comments expand environment": {
			input:      "# hello ${NAME}\n",
			showing:    true,
			env:        map[string]string{"NAME": "world"},
			wantOutput: "# hello world\n",
		},
		"commands expand environment for display only": {
			input:      "echo ${NAME}\n",
			keys:       "\n",
			showing:    true,
			env:        map[string]string{"NAME": "world"},
			wantRan:    []string{"echo ${NAME}"},
			wantOutput: "$ echo world\n",
		},
		"slow print": {
			input:      "#$   kubectl get pods  \n",
			showing:    true,
			wantOutput: "$ kubectl get pods\n",
		},
		"slow print while hidden": {
			input: "#$ kubectl get pods\n",
		},
		"nowaitbefore": {
			input:      "#@nowaitbefore\necho go\n",
			showing:    true,
			wantRan:    []string{"echo go"},
			wantOutput: "$ echo go\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			opts := []harnessOption{}
			if tc.showing {
				opts = append(opts, showing)
			}
			h := newHarness(t, tc.input, tc.keys, opts...)
			for k, v := range tc.env {
				h.disp.env[k] = v
			}

			h.run(t)

			assert.Equal(t, tc.wantRan, h.disp.ran)
			assert.Equal(t, tc.wantOutput, h.out.String())
		})
	}
}

func TestEngine_terminalModes(t *testing.T) {
	h := newHarness(t, "echo hi\n", "\n", showing)
	h.run(t)

	assert.Equal(t, []term.Mode{term.ModeRaw, term.ModeCbreak}, h.tty.modes)
}

func TestEngine_typingInterrupted(t *testing.T) {
	cases := map[string]struct {
		input      string
		typed      string
		keys       string
		wantRan    []string
		wantOutput string
	}{
		"fast forward flushes the line": {
			typed:      " ",
			keys:       "\n",
			wantRan:    []string{"echo hi"},
			wantOutput: "$ echo hi\n",
		},
		"run key runs at once": {
			typed:      "\n",
			wantRan:    []string{"echo hi"},
			wantOutput: "$ echo hi\n",
		},
		"unknown keys are ignored": {
			typed:      "xyz",
			keys:       "\n",
			wantRan:    []string{"echo hi"},
			wantOutput: "$ echo hi\n",
		},
		"quit stops typing": {
			typed:      "Q",
			wantOutput: "$ e\n",
		},
		"skip while typing": {
			typed:      "+",
			wantOutput: "$ echo hi\n...skipping\n",
		},
		"invalid utf-8 is typed byte for byte": {
			input:      "echo \xff more\n",
			typed:      "xxxxx ",
			keys:       "\n",
			wantRan:    []string{"echo \xff more"},
			wantOutput: "$ echo \xff more\n",
		},
		"multibyte runes stay whole": {
			input:      "echo h\u00e9llo\n",
			typed:      "xxxxxxx ",
			keys:       "\n",
			wantRan:    []string{"echo h\u00e9llo"},
			wantOutput: "$ echo h\u00e9llo\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			input := tc.input
			if input == "" {
				input = "echo hi\n"
			}
			h := newHarness(t, input, tc.keys, showing)
			h.tty.typed = []byte(tc.typed)

			h.run(t)

			assert.Equal(t, tc.wantRan, h.disp.ran)
			assert.Equal(t, tc.wantOutput, h.out.String())
		})
	}
}

func TestEngine_exitOnFailure(t *testing.T) {
	cases := map[string]struct {
		exitOnFailure bool
		wantRan       []string
	}{
		"stops": {
			exitOnFailure: true,
			wantRan:       []string{"false"},
		},
		"continues": {
			wantRan: []string{"false", "echo after"},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			h := newHarness(t, "false\necho after\n", "")
			h.disp.rcs["false"] = 1
			h.disp.exitOnFailure = tc.exitOnFailure

			h.run(t)

			assert.Equal(t, tc.wantRan, h.disp.ran)
		})
	}
}

func TestEngine_findPrevious(t *testing.T) {
	h := newHarness(t, "echo A\n# note\necho C\n", "")
	h.engine.commands[1].Hidden = true

	h.engine.cmdIndex = 3
	assert.Equal(t, 0, h.engine.findPrevious(2))
	assert.Equal(t, 2, h.engine.findPrevious(1))

	h.engine.cmdIndex = 1
	assert.Equal(t, -1, h.engine.findPrevious(2))
}

func TestEngine_rewindMarksHidden(t *testing.T) {
	// Commands that ran while hidden are never repeat targets.
	h := newHarness(t, "echo hidden\n#@SHOW\necho shown\n", "-\n")
	h.run(t)

	assert.Equal(t, []string{"echo hidden", "echo shown"}, h.disp.ran)
	assert.Equal(t, "$ echo shown\n...nothing earlier to repeat!\n$ echo shown\n", h.out.String())
}

func TestEngine_handleDirective(t *testing.T) {
	f := script.Flag

	cases := map[string]struct {
		directive     string
		wantModifier  bool
		wantOverrides script.Overrides
		wantSkipping  bool
		wantShowing   bool
	}{
		"SKIP": {
			directive:    "SKIP",
			wantModifier: true,
			wantSkipping: true,
		},
		"SHOW": {
			directive:    "SHOW",
			wantModifier: true,
			wantShowing:  true,
		},
		"HIDE": {
			directive:    "HIDE",
			wantModifier: true,
		},
		"wait": {
			directive:     "wait",
			wantOverrides: script.Overrides{WaitBefore: f(false), WaitAfter: f(true), TypeCommand: f(false), ExplicitWait: f(true)},
		},
		"print": {
			directive:     "print some text",
			wantOverrides: script.Overrides{WaitBefore: f(false), WaitAfter: f(true), TypeCommand: f(false)},
		},
		"waitafter": {
			directive:     "waitafter",
			wantModifier:  true,
			wantOverrides: script.Overrides{WaitAfter: f(true)},
		},
		"nowaitbefore": {
			directive:     "nowaitbefore",
			wantModifier:  true,
			wantOverrides: script.Overrides{WaitBefore: f(false)},
		},
		"noshow": {
			directive:     "noshow",
			wantModifier:  true,
			wantOverrides: script.Overrides{TypeCommand: f(false)},
		},
		"immed": {
			directive:     "immed",
			wantModifier:  true,
			wantOverrides: script.Overrides{WaitBefore: f(false), WaitAfter: f(false), TypeCommand: f(false)},
		},
		"immediate": {
			directive:     "immediate",
			wantModifier:  true,
			wantOverrides: script.Overrides{WaitBefore: f(false), WaitAfter: f(false), TypeCommand: f(false)},
		},
		"other": {
			directive:     "clear",
			wantOverrides: script.Overrides{WaitBefore: f(false), WaitAfter: f(false), TypeCommand: f(false)},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			h := newHarness(t, "", "")

			got := h.engine.handleDirective(tc.directive)

			assert.Equal(t, tc.wantModifier, got)
			assert.Equal(t, tc.wantOverrides, h.engine.overrides)
			assert.Equal(t, tc.wantSkipping, h.engine.skipping)
			assert.Equal(t, tc.wantShowing, h.engine.showing)
		})
	}
}

func TestEngine_macros(t *testing.T) {
	input := "#@macro twice\necho a\necho b\n#@end\ntwice\ntwice\n"

	t.Run("each call starts over", func(t *testing.T) {
		h := newHarness(t, input, "")
		h.run(t)

		assert.Equal(t, []string{"twice", "echo a", "echo b", "twice", "echo a", "echo b"}, h.disp.ran)
		assert.Equal(t, []string{"twice"}, h.engine.Macros())
		assert.Len(t, h.engine.Commands(), 2)
	})

	t.Run("macros start hidden", func(t *testing.T) {
		h := newHarness(t, input, "\n\n", showing)
		h.run(t)

		assert.Equal(t, []string{"twice", "echo a", "echo b", "twice", "echo a", "echo b"}, h.disp.ran)
		assert.Equal(t, "$ twice\n$ twice\n", h.out.String())
	})
}

func TestEngine_hooks(t *testing.T) {
	h := newHarness(t, "#@hook show_slides SLIDES\n#@show_slides\n", "")

	assert.Equal(t, map[string]string{"show_slides": "SLIDES"}, h.disp.hooks)

	h.run(t)
	assert.Equal(t, []string{"show_slides"}, h.disp.ran)
}

func TestEngine_ifhook(t *testing.T) {
	input := "#@ifhook show_slides\necho slides\n#@endif\n#@ifhook show_browser\necho browser\n#@endif\necho always\n"

	cases := map[string]struct {
		active  map[string]bool
		wantRan []string
	}{
		"inactive": {
			wantRan: []string{"echo always"},
		},
		"one active": {
			active:  map[string]bool{"show_slides": true},
			wantRan: []string{"echo slides", "echo always"},
		},
		"both active": {
			active:  map[string]bool{"show_slides": true, "show_browser": true},
			wantRan: []string{"echo slides", "echo browser", "echo always"},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			h := newHarness(t, input, "")
			for k, v := range tc.active {
				h.disp.active[k] = v
			}

			h.run(t)

			assert.Equal(t, tc.wantRan, h.disp.ran)
		})
	}

	t.Run("conditions", func(t *testing.T) {
		h := newHarness(t, input, "")
		cmds := h.engine.Commands()

		require.Len(t, cmds, 3)
		assert.Equal(t, []string{"show_slides"}, cmds[0].Conditions)
		assert.Equal(t, []string{"show_browser"}, cmds[1].Conditions)
		assert.Empty(t, cmds[2].Conditions)
	})
}

func TestEngine_imports(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "lib.sh", []byte("echo from lib\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "notes.md", []byte("Intro\n```bash\necho from md\n```\n"), 0644))

	h := newHarness(t, "#@import lib.sh\n#@import notes.md\necho main\n", "", withFs(fs))
	h.run(t)

	assert.Equal(t, []string{"echo from lib", "echo from md", "echo main"}, h.disp.ran)

	cmds := h.engine.Commands()
	require.Len(t, cmds, 4)
	assert.True(t, cmds[1].Markdown)
}

func TestEngine_importMissing(t *testing.T) {
	_, err := New(Options{
		Dispatcher: newFakeDispatcher(),
		Terminal:   &fakeTerminal{},
		Out:        &bytes.Buffer{},
		Fs:         afero.NewMemMapFs(),
	}, "demo.sh", script.ModeShell, strings.NewReader("#@import missing.sh\n"))

	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), `import "missing.sh"`)
}

func TestEngine_importParseError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "broken.sh", []byte("#@macro oops\necho never ends\n"), 0644))

	_, err := New(Options{
		Dispatcher: newFakeDispatcher(),
		Terminal:   &fakeTerminal{},
		Out:        &bytes.Buffer{},
		Fs:         fs,
	}, "demo.sh", script.ModeShell, strings.NewReader("#@import broken.sh\n"))

	var parseErr *script.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "broken.sh", parseErr.File)
	assert.ErrorIs(t, err, script.ErrUnterminatedBlock)
}

func TestEngine_importBuiltins(t *testing.T) {
	h := newHarness(t, "#@import @builtins\n", "")

	assert.Equal(t, []string{
		"wait_clear",
		"_b_t_t_internal",
		"browser_then_terminal",
		"_s_t_internal",
		"start_livecast",
	}, h.engine.Macros())
	assert.Contains(t, h.disp.macros, "start_livecast")
	assert.Contains(t, BuiltinMacros(), "#@macro wait_clear")
}

func TestEngine_markdown(t *testing.T) {
	input := "Some *prose*\n```bash\necho md\n```\n"
	h := newHarnessMode(t, script.ModeMarkdown, input, "\n", showing)
	h.run(t)

	assert.Equal(t, []string{"echo md"}, h.disp.ran)
	assert.Equal(t, "Some prose\n$ echo md\n", h.out.String())
}

func TestEngine_colors(t *testing.T) {
	ansi := func(o *Options) {
		o.Caps = termcap.ANSI{}
	}
	reset := termcap.ANSI{}.Reset()

	h := newHarness(t, "# note\n", "", showing, ansi)
	h.run(t)
	assert.Equal(t, "\x1b[31m# note"+reset+"\n", h.out.String())

	h = newHarness(t, "echo A\n", "+", showing, ansi)
	h.run(t)
	assert.Equal(t, "$ echo A"+reset+"\n\x1b[35m...skipping"+reset+"\n", h.out.String())
}

func TestEngine_contextCanceled(t *testing.T) {
	h := newHarness(t, "echo hi\n", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, h.engine.Run(ctx), context.Canceled)
	assert.Empty(t, h.disp.ran)
}

func TestEngine_Dump(t *testing.T) {
	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	input := strings.Join([]string{
		"#!/bin/bash",
		"# Say hello",
		"#@noshow",
		"echo hello",
		"#@ifhook show_slides",
		"show_slides",
		"#@endif",
		"#@macro greet",
		"echo hi",
		"#@end",
		"",
	}, "\n")
	h := newHarness(t, input, "")

	var out bytes.Buffer
	require.NoError(t, h.engine.Dump(&out))
	g.Assert(t, "dump", out.Bytes())
}

func TestEngine_withShellState(t *testing.T) {
	var stdout bytes.Buffer
	state, err := shell.New(shell.Options{
		Shell:   "sh",
		Dir:     t.TempDir(),
		Environ: []string{"PATH=/usr/bin:/bin"},
		Script:  "demo.sh",
		Stdin:   &bytes.Buffer{},
		Stdout:  &stdout,
		Stderr:  &stdout,
	})
	require.NoError(t, err)

	var screen bytes.Buffer
	engine, err := New(Options{
		Dispatcher: state,
		Terminal:   &fakeTerminal{},
		Out:        &screen,
	}, "demo.sh", script.ModeShell, strings.NewReader("VAR=value\necho ${VAR}\n#@print got ${VAR}\n"))
	require.NoError(t, err)

	require.NoError(t, engine.Run(context.Background()))

	assert.Equal(t, "value", state.Env().Getenv("VAR"))
	assert.Equal(t, "value\n", stdout.String())
	assert.Equal(t, "got value\n", screen.String())
}
