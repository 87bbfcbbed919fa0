// Package shell implements the minimal command interpreter demo scripts are
// played through. It understands variable assignments, function definitions,
// macros and a handful of builtins; everything else runs in a real shell.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/anmitsu/go-shlex"
	"mvdan.cc/sh/v3/syntax"
)

const (
	// DefaultShell interprets commands unless configured otherwise.
	DefaultShell = "bash"
	// DefaultHookPrefix is prepended to a hook's suffix to find its body.
	DefaultHookPrefix = "DEMO_HOOK_"

	// ExitNotFound is returned for lines that can't be run at all.
	ExitNotFound = 127

	noopBody = ":;"
)

var (
	// assignmentRegex matches the start of NAME=value and export NAME=value.
	assignmentRegex = regexp.MustCompile(`^\s*(export\s+)?([a-zA-Z0-9_]+)=`)

	// functionRegex matches the first line of a function definition the
	// syntax parser rejected, such as one using extensions it doesn't know.
	functionRegex = regexp.MustCompile(`^\s*(function\s+)?([a-zA-Z0-9_]+)\s*\(\)\s+\{`)
)

// Console receives text the print builtin displays.
type Console interface {
	// Print displays a line regardless of whether playback is showing.
	Print(text string)
}

// Macro is a named, independently playable list of commands.
type Macro interface {
	Run(ctx context.Context) error
}

// HandlerFunc runs a builtin. It receives the whole command line.
type HandlerFunc func(ctx context.Context, s *State, console Console, cmdline string) int

// Options configures a new State.
type Options struct {
	// Shell is the interpreter used for external commands.
	Shell string
	// Dir is the starting working directory, defaults to the process's.
	Dir string
	// Environ seeds the environment, defaults to os.Environ().
	Environ []string
	// Script is the path of the script being played, exposed as ${0}.
	Script string
	// Args are the script's arguments, exposed as ${1}..${N}.
	Args []string
	// Self is exposed as $SHELL so scripts re-entering "the shell" get demosh.
	Self string
	// HookPrefix names the variables hook bodies are read from.
	HookPrefix string
	// ExitOnFailure starts with "set -e" semantics.
	ExitOnFailure bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
}

// State is the interpreter state shared by every engine playing a script:
// environment, working directory, functions, hooks and macros.
type State struct {
	shell      string
	hookPrefix string
	cwd        string
	env        *Env

	functions     []string
	macros        map[string]Macro
	hooks         map[string]bool
	handlers      map[string]HandlerFunc
	exitOnFailure bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	log *slog.Logger
}

// New creates interpreter state from the options.
func New(opts Options) (*State, error) {
	s := &State{
		shell:         opts.Shell,
		hookPrefix:    opts.HookPrefix,
		cwd:           opts.Dir,
		macros:        make(map[string]Macro),
		hooks:         make(map[string]bool),
		exitOnFailure: opts.ExitOnFailure,
		stdin:         opts.Stdin,
		stdout:        opts.Stdout,
		stderr:        opts.Stderr,
		log:           opts.Logger,
	}

	if s.shell == "" {
		s.shell = DefaultShell
	}
	if s.hookPrefix == "" {
		s.hookPrefix = DefaultHookPrefix
	}
	if s.stdin == nil {
		s.stdin = os.Stdin
	}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if s.cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		s.cwd = wd
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	s.env = NewEnvFromList(environ)

	if opts.Self != "" {
		s.env.Setenv("SHELL", opts.Self)
	}

	if opts.Script != "" {
		script, err := filepath.Abs(opts.Script)
		if err != nil {
			return nil, err
		}
		s.env.Setenv("0", script)
	}
	for i, arg := range opts.Args {
		s.env.Setenv(strconv.Itoa(i+1), arg)
	}

	s.handlers = map[string]HandlerFunc{
		"wait":  builtinWait,
		"print": builtinPrint,
		"set":   builtinSet,
		"cd":    builtinCd,
	}

	return s, nil
}

// Env returns the interpreter's environment.
func (s *State) Env() *Env {
	return s.env
}

// ExpandEnv substitutes ${name} references in s.
func (s *State) ExpandEnv(text string) string {
	return s.env.ExpandEnv(text)
}

// Cwd returns the working directory commands run in.
func (s *State) Cwd() string {
	return s.cwd
}

// ExitOnFailure reports whether a failing command should stop playback.
func (s *State) ExitOnFailure() bool {
	return s.exitOnFailure
}

// SetExitOnFailure toggles "set -e" behavior.
func (s *State) SetExitOnFailure(v bool) {
	s.exitOnFailure = v
}

// AddFunction records a shell function definition. Definitions are prepended
// to every command run in the shell.
func (s *State) AddFunction(def string) {
	s.functions = append(s.functions, def)
}

// Functions returns the recorded function definitions.
func (s *State) Functions() []string {
	return append([]string(nil), s.functions...)
}

// AddHook defines a shell function whose body comes from the environment
// variable HookPrefix+suffix. Hooks without a body are defined as no-ops and
// are inactive.
func (s *State) AddHook(name, suffix string) {
	body := s.env.Getenv(s.hookPrefix + suffix)
	active := body != ""
	if !active {
		body = noopBody
	}

	s.AddFunction(fmt.Sprintf("%s() {\n%s\n}", name, body))
	s.hooks[name] = active
	s.log.Debug("hook defined", "name", name, "active", active)
}

// HookActive reports whether a hook with a non-empty body was declared.
func (s *State) HookActive(name string) bool {
	return s.hooks[name]
}

// SetMacro registers a macro under name, replacing any earlier definition.
func (s *State) SetMacro(name string, m Macro) {
	s.macros[name] = m
}

// Macro looks up a macro by name.
func (s *State) Macro(name string) (Macro, bool) {
	m, ok := s.macros[name]
	return m, ok
}

// Macros lists the defined macro names.
func (s *State) Macros() []string {
	var out []string
	for name := range s.macros {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Builtins lists the builtin command names.
func (s *State) Builtins() []string {
	var out []string
	for name := range s.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Run executes one command line and returns its exit status.
func (s *State) Run(ctx context.Context, console Console, cmdline string) int {
	if m := assignmentRegex.FindStringSubmatchIndex(cmdline); m != nil {
		name := cmdline[m[4]:m[5]]
		value := cmdline[m[1]:]
		return s.assign(ctx, name, value)
	}

	if def, ok := functionDefinition(cmdline); ok {
		s.AddFunction(def)
		return 0
	}

	return s.runCommand(ctx, console, cmdline)
}

func (s *State) runCommand(ctx context.Context, console Console, cmdline string) int {
	fields, err := shlex.Split(cmdline, true)
	if err != nil {
		fmt.Fprintf(s.stdout, "could not parse line: %s\n", cmdline)
		return ExitNotFound
	}
	if len(fields) == 0 {
		return 0
	}

	first := fields[0]
	if macro, ok := s.macros[first]; ok {
		s.log.Debug("running macro", "name", first)
		if err := macro.Run(ctx); err != nil {
			s.log.Error("macro failed", "name", first, "error", err)
			return 1
		}
		return 0
	}

	handler, ok := s.handlers[first]
	if !ok {
		handler = runExternal
	}

	rc := handler(ctx, s, console, cmdline)
	s.log.Debug("command finished", "command", first, "rc", rc)
	return rc
}

// script joins the function definitions with the given lines.
func (s *State) script(lines ...string) string {
	parts := append(s.Functions(), lines...)
	return strings.Join(parts, "\n") + "\n"
}

// capture runs a script on the shell's stdin and collects its output.
func (s *State) capture(ctx context.Context, script string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, s.shell)
	cmd.Dir = s.cwd
	cmd.Env = s.env.Exported()
	cmd.Stdin = strings.NewReader(script)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func (s *State) assign(ctx context.Context, name, value string) int {
	for i := 0; ; i++ {
		arg, ok := s.env.LookupEnv(strconv.Itoa(i))
		if !ok {
			break
		}
		value = strings.ReplaceAll(value, fmt.Sprintf("${%d}", i), arg)
		value = strings.ReplaceAll(value, fmt.Sprintf("$%d", i), arg)
	}

	stdout, stderr, err := s.capture(ctx, s.script(
		fmt.Sprintf("%s=%s", name, value),
		fmt.Sprintf(`echo "$%s"`, name),
	))
	if stderr != "" {
		io.WriteString(s.stdout, stderr)
	}
	if err != nil {
		fmt.Fprintln(s.stdout, "assignment failed!")
		return 1
	}

	s.env.Setenv(name, strings.TrimSpace(stdout))
	s.log.Debug("assigned", "name", name)
	return 0
}

// functionDefinition reports whether cmdline is exactly one function
// definition and returns it in "name() { ... }" form.
func functionDefinition(cmdline string) (string, bool) {
	file, err := syntax.NewParser().Parse(strings.NewReader(cmdline), "")
	if err != nil {
		if m := functionRegex.FindStringSubmatchIndex(cmdline); m != nil {
			return cmdline[m[4]:m[5]] + "() {" + cmdline[m[1]:], true
		}
		return "", false
	}
	if len(file.Stmts) != 1 {
		return "", false
	}

	decl, ok := file.Stmts[0].Cmd.(*syntax.FuncDecl)
	if !ok {
		return "", false
	}
	decl.RsrvWord = false

	var buf bytes.Buffer
	if err := syntax.NewPrinter().Print(&buf, file); err != nil {
		return "", false
	}
	return strings.TrimSpace(buf.String()), true
}

// exitCode converts the result of running a child into a shell status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitNotFound
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}
