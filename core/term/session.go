// Package term owns the process-wide terminal mode used during playback.
package term

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Mode is a terminal input mode.
type Mode int

const (
	// ModeSane is the mode the terminal was in when the session was opened.
	ModeSane Mode = iota
	// ModeCbreak disables line buffering and echo; reads block for one byte.
	ModeCbreak
	// ModeRaw is ModeCbreak with a zero read timeout so input can be polled.
	ModeRaw
)

func (m Mode) String() string {
	switch m {
	case ModeSane:
		return "sane"
	case ModeCbreak:
		return "cbreak"
	case ModeRaw:
		return "raw"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Session holds the terminal attribute snapshots taken once at startup.
// Nested playback shares a single Session.
type Session struct {
	fd     int
	states map[Mode]*unix.Termios
}

// Open snapshots the attributes of in. If in is not a terminal the returned
// session still reads keys but mode changes are no-ops.
func Open(in *os.File) (*Session, error) {
	s := &Session{fd: int(in.Fd())}
	if !term.IsTerminal(s.fd) {
		return s, nil
	}

	sane, err := unix.IoctlGetTermios(s.fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("reading terminal attributes: %w", err)
	}

	cbreak := *sane
	cbreak.Lflag &^= unix.ICANON | unix.ECHO

	raw := cbreak
	raw.Cc[unix.VMIN] = 0
	raw.Cc[unix.VTIME] = 0

	s.states = map[Mode]*unix.Termios{
		ModeSane:   sane,
		ModeCbreak: &cbreak,
		ModeRaw:    &raw,
	}
	return s, nil
}

// IsTerminal reports whether the session controls a real terminal.
func (s *Session) IsTerminal() bool {
	return s.states != nil
}

func (s *Session) set(mode Mode) error {
	if s.states == nil {
		return nil
	}
	if err := unix.IoctlSetTermios(s.fd, ioctlSetTermiosDrain, s.states[mode]); err != nil {
		return fmt.Errorf("entering %s mode: %w", mode, err)
	}
	return nil
}

// Restore puts the terminal back into its original mode.
func (s *Session) Restore() error {
	return s.set(ModeSane)
}

// Scoped runs fn with the terminal in the given mode and restores the
// original mode afterwards, whether or not fn fails.
func (s *Session) Scoped(mode Mode, fn func() error) (err error) {
	if err := s.set(mode); err != nil {
		return err
	}
	defer func() {
		if restoreErr := s.Restore(); restoreErr != nil && err == nil {
			err = restoreErr
		}
	}()

	return fn()
}

// ReadKey blocks until one byte of input is available. It returns io.EOF when
// the input is closed.
func (s *Session) ReadKey() (byte, error) {
	for {
		ok, err := s.wait(-1)
		if err != nil {
			return 0, err
		}
		if ok {
			return s.readByte()
		}
	}
}

// PollKey waits up to timeout for a byte of input. The boolean is false if
// nothing arrived in time.
func (s *Session) PollKey(timeout time.Duration) (byte, bool, error) {
	ok, err := s.wait(int(timeout / time.Millisecond))
	if err != nil || !ok {
		return 0, false, err
	}

	ch, err := s.readByte()
	if err != nil {
		return 0, false, err
	}
	return ch, true, nil
}

// wait polls the input descriptor for readability. A negative timeout blocks.
func (s *Session) wait(timeoutMillis int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}

	n, err := unix.Poll(fds, timeoutMillis)
	switch {
	case errors.Is(err, unix.EINTR):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("polling input: %w", err)
	}
	return n > 0, nil
}

func (s *Session) readByte() (byte, error) {
	var buf [1]byte
	for {
		n, err := unix.Read(s.fd, buf[:])
		switch {
		case errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN):
			continue
		case err != nil:
			return 0, fmt.Errorf("reading input: %w", err)
		case n == 0:
			return 0, io.EOF
		}
		return buf[0], nil
	}
}
