package ttylog

import (
	"io"
	"regexp"
	"sync"
	"time"
)

var (
	crlf = regexp.MustCompile(`\r?\n`)
)

// LogSink receives log events.
type LogSink func(e *Event) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available log entry. It returns io.EOF if the source
	// has no more log entries.
	Next() (*Event, error)
}

// NewRealTimePlayback plays back the results in real-time.
// If maxSleep > 0, it's used as the maximum duration to pause.
func NewRealTimePlayback(maxSleep time.Duration, next LogSink) LogSink {
	var once sync.Once
	var prevTimeMicros int64

	return func(e *Event) error {
		once.Do(func() {
			prevTimeMicros = e.TimestampMicros
		})

		delta := e.TimestampMicros - prevTimeMicros
		prevTimeMicros = e.TimestampMicros

		if maxSleep > 0 {
			sleepDuration := time.Duration(delta) * time.Microsecond
			if sleepDuration > maxSleep {
				sleepDuration = maxSleep
			}
			time.Sleep(sleepDuration)
		}

		return next(e)
	}
}

// NewCRLFAdapter rewrites bare newlines as CRLF. Output captured while the
// terminal was in raw mode otherwise creeps across the screen on replay.
func NewCRLFAdapter(next LogSink) LogSink {
	return func(e *Event) error {
		if e.Fd != FDStdin {
			e.Data = crlf.ReplaceAll(e.Data, []byte("\r\n"))
		}

		return next(e)
	}
}

// NewClientOutput writes stdout and stderr to the given writer
func NewClientOutput(w io.Writer) LogSink {
	return func(e *Event) error {
		if e.Fd == FDStdin {
			return nil
		}
		_, err := w.Write(e.Data)
		return err
	}
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) (err error) {
	for {
		e, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(e); err != nil {
			return err
		}
	}
}

// Recorder copies everything written through its writers to a LogSink.
type Recorder struct {
	mutex  sync.Mutex
	output LogSink
	now    func() time.Time
	err    error
}

// NewRecorder creates a recorder that forwards all events to output.
func NewRecorder(output LogSink) *Recorder {
	return &Recorder{
		output: output,
		now:    time.Now,
	}
}

// Writer wraps w so successful writes are recorded as fd.
func (r *Recorder) Writer(fd FD, w io.Writer) io.Writer {
	return &recorderWriter{r: r, mockFd: fd, wrapped: w}
}

// Err returns the first error the sink reported. Recording errors never fail
// the wrapped writes.
func (r *Recorder) Err() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.err
}

func (r *Recorder) record(mockFd FD, eventTime time.Time, data []byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err != nil {
		return
	}
	r.err = r.output(NewEvent(eventTime, mockFd, append([]byte(nil), data...)))
}

type recorderWriter struct {
	r       *Recorder
	mockFd  FD
	wrapped io.Writer
}

var _ io.Writer = (*recorderWriter)(nil)

func (rw *recorderWriter) Write(p []byte) (int, error) {
	eventTime := rw.r.now()
	amount, err := rw.wrapped.Write(p)
	if amount > 0 {
		rw.r.record(rw.mockFd, eventTime, p[:amount])
	}
	return amount, err
}
