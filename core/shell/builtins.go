package shell

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/pborman/getopt/v2"
)

// setFlags are the single-letter options bash's set accepts. Only e changes
// playback, the rest are accepted so scripts written for bash still parse.
const setFlags = "abefhkmnptuvxBCEHPT"

func builtinWait(ctx context.Context, s *State, console Console, cmdline string) int {
	return 0
}

// builtinPrint shows its arguments, joined by single spaces, even while
// playback is hidden.
func builtinPrint(ctx context.Context, s *State, console Console, cmdline string) int {
	rest := strings.TrimPrefix(strings.TrimLeft(cmdline, " \t"), "print")

	fields, err := shlex.Split(rest, true)
	if err != nil {
		fmt.Fprintf(s.stdout, "could not parse line: %s\n", cmdline)
		return ExitNotFound
	}

	text := s.ExpandEnv(strings.Join(fields, " "))
	if console != nil {
		console.Print(text)
	} else {
		fmt.Fprintln(s.stdout, text)
	}
	return 0
}

// builtinSet honors "set -e" and "set +e".
func builtinSet(ctx context.Context, s *State, console Console, cmdline string) int {
	fields, err := shlex.Split(cmdline, true)
	if err != nil || len(fields) < 2 {
		return 0
	}

	value := true
	switch fields[1][0] {
	case '-':
	case '+':
		value = false
	default:
		fmt.Fprintf(s.stderr, "Unknown set flag: %c\n", fields[1][0])
		return 1
	}

	opts := getopt.New()
	opts.SetProgram("set")
	letters := make(map[rune]*bool)
	for _, r := range setFlags {
		letters[r] = opts.Bool(r, "")
	}
	opts.String('o', "", "option name")

	// getopt only knows "-x", so "+x" is parsed as "-x" with the value flipped.
	args := []string{"set"}
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, "+") {
			f = "-" + f[1:]
		}
		args = append(args, f)
	}

	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintf(s.stderr, "set: %v\n", err)
		return 1
	}

	if *letters['e'] {
		s.SetExitOnFailure(value)
		s.log.Debug("exit on failure", "enabled", value)
	}
	return 0
}

// builtinCd changes directory in a throwaway shell and adopts the directory
// it ends up in.
func builtinCd(ctx context.Context, s *State, console Console, cmdline string) int {
	stdout, stderr, err := s.capture(ctx, "set -e\n"+cmdline+"\npwd\n")
	if err != nil {
		fmt.Fprintf(s.stdout, "cd failed: %s\n", strings.TrimSpace(stderr))
		return 1
	}

	s.cwd = strings.TrimSpace(stdout)
	s.log.Debug("changed directory", "cwd", s.cwd)
	return 0
}

// runExternal hands the line, with every function definition before it, to
// the configured shell.
func runExternal(ctx context.Context, s *State, console Console, cmdline string) int {
	cmd := exec.CommandContext(ctx, s.shell, "-c", s.script(cmdline))
	cmd.Dir = s.cwd
	cmd.Env = s.env.Exported()
	cmd.Stdin = s.stdin
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	return exitCode(cmd.Run())
}
