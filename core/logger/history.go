package logger

import "sort"

// JobRecord is the replayed life of one job within a session.
type JobRecord struct {
	Session string   `json:"session"`
	Job     int      `json:"job"`
	Command string   `json:"command"`
	Kind    string   `json:"kind"`
	State   string   `json:"state"`
	Success bool     `json:"success"`
	Signals []string `json:"signals,omitempty"`
}

// JobHistory rebuilds the job table of every session from its events.
//
// Job indices restart at zero in each session, so records are keyed by
// session and index.
type JobHistory struct {
	records []*JobRecord
	live    map[string]map[int]*JobRecord
}

// Update folds a log entry into the history.
func (h *JobHistory) Update(le *LogEntry) {
	if h.live == nil {
		h.live = make(map[string]map[int]*JobRecord)
	}
	session := le.GetSessionId()

	switch event := le.GetLogType().(type) {
	case *RunCommand:
		rec := &JobRecord{
			Session: session,
			Job:     event.Job,
			Command: event.Command,
			Kind:    event.Kind,
			State:   "Run",
		}
		h.records = append(h.records, rec)
		if h.live[session] == nil {
			h.live[session] = make(map[int]*JobRecord)
		}
		h.live[session][event.Job] = rec

	case *JobState:
		rec := h.lookup(session, event.Job, event.Command)
		rec.State = event.To
		rec.Success = event.Success

	case *JobSignal:
		rec := h.lookup(session, event.Job, "")
		rec.Signals = append(rec.Signals, event.Signal)
	}
}

// lookup finds the live record for a job, creating one when the log
// starts part way through a session.
func (h *JobHistory) lookup(session string, job int, command string) *JobRecord {
	if rec, ok := h.live[session][job]; ok {
		return rec
	}
	rec := &JobRecord{Session: session, Job: job, Command: command, State: "Run"}
	h.records = append(h.records, rec)
	if h.live[session] == nil {
		h.live[session] = make(map[int]*JobRecord)
	}
	h.live[session][job] = rec
	return rec
}

// Jobs returns the records in log order, optionally limited to one session.
func (h *JobHistory) Jobs(session string) []JobRecord {
	var out []JobRecord
	for _, rec := range h.records {
		if session != "" && rec.Session != session {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

// Sessions lists the sessions that launched at least one job.
func (h *JobHistory) Sessions() []string {
	var out []string
	for id := range h.live {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SessionFilter wraps handler so it only sees entries from session. An
// empty session passes everything through.
func SessionFilter(session string, handler func(le *LogEntry)) func(le *LogEntry) {
	if session == "" {
		return handler
	}
	return func(le *LogEntry) {
		if le.GetSessionId() == session {
			handler(le)
		}
	}
}
