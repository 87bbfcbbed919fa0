package logger

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"time"
)

// LogEntry is one record of a JSON log written by New.
type LogEntry struct {
	Time      time.Time `json:"time"`
	Level     string    `json:"level"`
	Msg       string    `json:"msg"`
	Engine    string    `json:"engine,omitempty"`
	Command   string    `json:"command,omitempty"`
	RC        *int      `json:"rc,omitempty"`
	Directive string    `json:"directive,omitempty"`
}

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about a playback session's log.
type Report struct {
	LogEntries int        `json:"log_entries"`
	Levels     StrCounter `json:"levels"`

	Commands   StrCounter   `json:"commands"`
	Failures   *PathCounter `json:"failures"`
	Directives StrCounter   `json:"directives"`
	Engines    StrCounter   `json:"engines"`

	Rewinds int `json:"rewinds"`
	Skips   int `json:"skips"`
	Quits   int `json:"quits"`

	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration_ns"`
}

func NewReport() *Report {
	return &Report{
		Failures: NewPathCounter("command", "rc"),
	}
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	r.Levels.Increment(le.Level)

	if !le.Time.IsZero() {
		if r.Start.IsZero() || le.Time.Before(r.Start) {
			r.Start = le.Time
		}
		if d := le.Time.Sub(r.Start); d > r.Duration {
			r.Duration = d
		}
	}

	switch le.Msg {
	case MsgDispatch:
		r.Commands.Increment(le.Command)
		r.Engines.Increment(le.Engine)
		if le.RC != nil && *le.RC != 0 {
			r.Failures.Increment(le.Command, strconv.Itoa(*le.RC))
		}
	case MsgDirective:
		r.Directives.Increment(le.Directive)
	case MsgRewind:
		r.Rewinds++
	case MsgSkip:
		r.Skips++
	case MsgQuit:
		r.Quits++
	}
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Count returns how many times key was seen.
func (s *StrCounter) Count(key string) int {
	return s.internal[key]
}

// MarshalJSON implements a custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts combinations of column values.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Count returns how many times the combination was seen.
func (ctr *PathCounter) Count(vals ...string) int {
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implements a custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
