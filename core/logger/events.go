package logger

// LogEntry is one line of the event log. Exactly one event field is set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionId       string `json:"session_id,omitempty"`

	SessionStart   *SessionStart   `json:"session_start,omitempty"`
	RunCommand     *RunCommand     `json:"run_command,omitempty"`
	JobState       *JobState       `json:"job_state,omitempty"`
	JobSignal      *JobSignal      `json:"job_signal,omitempty"`
	UnknownCommand *UnknownCommand `json:"unknown_command,omitempty"`
	SyntaxError    *SyntaxError    `json:"syntax_error,omitempty"`
}

// LogType is implemented by every event that can be stored in a LogEntry.
type LogType interface {
	setOn(le *LogEntry)
}

// GetSessionId returns the session the entry belongs to.
func (le *LogEntry) GetSessionId() string {
	if le == nil {
		return ""
	}
	return le.SessionId
}

// GetLogType returns the event stored in the entry or nil.
func (le *LogEntry) GetLogType() LogType {
	switch {
	case le == nil:
		return nil
	case le.SessionStart != nil:
		return le.SessionStart
	case le.RunCommand != nil:
		return le.RunCommand
	case le.JobState != nil:
		return le.JobState
	case le.JobSignal != nil:
		return le.JobSignal
	case le.UnknownCommand != nil:
		return le.UnknownCommand
	case le.SyntaxError != nil:
		return le.SyntaxError
	}
	return nil
}

// SessionStart is logged once when the shell starts.
type SessionStart struct {
	User        string `json:"user"`
	Pid         int    `json:"pid"`
	Interactive bool   `json:"interactive"`
}

func (e *SessionStart) setOn(le *LogEntry) { le.SessionStart = e }

// RunCommand is logged for every command line handed to the job table.
type RunCommand struct {
	Command    string   `json:"command"`
	Argv       []string `json:"argv"`
	Kind       string   `json:"kind"`
	Foreground bool     `json:"foreground"`
	Job        int      `json:"job"`
	Pids       []int    `json:"pids,omitempty"`
}

func (e *RunCommand) setOn(le *LogEntry) { le.RunCommand = e }

// JobState is logged when a job changes state.
type JobState struct {
	Job     int    `json:"job"`
	Command string `json:"command"`
	From    string `json:"from"`
	To      string `json:"to"`
	Success bool   `json:"success,omitempty"`
}

func (e *JobState) setOn(le *LogEntry) { le.JobState = e }

// JobSignal is logged when the shell signals a job.
type JobSignal struct {
	Job    int    `json:"job"`
	Signal string `json:"signal"`
}

func (e *JobSignal) setOn(le *LogEntry) { le.JobSignal = e }

// UnknownCommand is logged when a program could not be found.
type UnknownCommand struct {
	Command []string `json:"command"`
}

func (e *UnknownCommand) setOn(le *LogEntry) { le.UnknownCommand = e }

// SyntaxError is logged for input the shell could not classify.
type SyntaxError struct {
	Input        string `json:"input"`
	ErrorMessage string `json:"error_message"`
}

func (e *SyntaxError) setOn(le *LogEntry) { le.SyntaxError = e }
