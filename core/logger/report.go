package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	RunCommand     RunCommandReport     `json:"run_command_report"`
	JobState       JobStateReport       `json:"job_state_report"`
	JobSignal      JobSignalReport      `json:"job_signal_report"`
	UnknownCommand UnknownCommandReport `json:"unknown_command_report"`
	SyntaxError    SyntaxErrorReport    `json:"syntax_error_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	if id := le.GetSessionId(); id != "" {
		r.Sessions.Increment(id)
	}

	switch event := le.GetLogType().(type) {
	case *RunCommand:
		r.RunCommand.update(event)
	case *JobState:
		r.JobState.update(event)
	case *JobSignal:
		r.JobSignal.update(event)
	case *UnknownCommand:
		r.UnknownCommand.update(event)
	case *SyntaxError:
		r.SyntaxError.update(event)
	case *SessionStart:
		// Ignore
	default:
		r.InvalidEntries.Increment(fmt.Sprintf("%T", event))
	}
}

type RunCommandReport struct {
	// Name of the first program of each command line.
	CommandNames StrCounter `json:"command_names"`
	// Single, pipeline or chain.
	Kinds      StrCounter `json:"kinds"`
	Background int        `json:"background"`
}

func (r *RunCommandReport) update(rc *RunCommand) {
	if len(rc.Argv) > 0 {
		r.CommandNames.Increment(rc.Argv[0])
	}
	r.Kinds.Increment(rc.Kind)
	if !rc.Foreground {
		r.Background++
	}
}

type JobStateReport struct {
	Transitions *PathCounter `json:"transitions"`
	Failed      int          `json:"failed"`
}

func (r *JobStateReport) update(js *JobState) {
	if r.Transitions == nil {
		r.Transitions = NewPathCounter("from", "to")
	}
	r.Transitions.Increment(js.From, js.To)
	if js.To == "Done" && !js.Success {
		r.Failed++
	}
}

type JobSignalReport struct {
	Signals StrCounter `json:"signals"`
}

func (r *JobSignalReport) update(js *JobSignal) {
	r.Signals.Increment(js.Signal)
}

type UnknownCommandReport struct {
	CommandNames StrCounter `json:"command_names"`
}

func (r *UnknownCommandReport) update(logEntry *UnknownCommand) {
	if len(logEntry.Command) > 0 {
		r.CommandNames.Increment(logEntry.Command[0])
	}
}

type SyntaxErrorReport struct {
	Errors StrCounter `json:"errors"`
}

func (r *SyntaxErrorReport) update(logEntry *SyntaxError) {
	r.Errors.Increment(logEntry.ErrorMessage)
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

// Count returns how often key was seen.
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

// PathCounter counts tuples of strings.
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

// Count returns how often the tuple was seen.
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

	var out []Count
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
