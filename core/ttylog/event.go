// Package ttylog records terminal output from a demo and plays it back.
package ttylog

import "time"

// FD identifies the stream an Event was written to.
type FD int

const (
	FDStdin FD = iota
	FDStdout
	FDStderr
)

func (fd FD) String() string {
	switch fd {
	case FDStdin:
		return "stdin"
	case FDStdout:
		return "stdout"
	case FDStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Event is one chunk of terminal IO.
type Event struct {
	TimestampMicros int64
	Fd              FD
	Data            []byte
}

// NewEvent creates an event stamped with t.
func NewEvent(t time.Time, fd FD, data []byte) *Event {
	return &Event{
		TimestampMicros: t.UnixMicro(),
		Fd:              fd,
		Data:            data,
	}
}
