// pkg/schema/events.go
package schema

// Subject suffixes appended to the configured base subject.
const (
	SuffixActions = ".actions"
	SuffixOutput  = ".output"
	SuffixExit    = ".exit"
	SuffixState   = ".state"
)

// ActionRequest asks a worker to start an action or stop the current job.
type ActionRequest struct {
	Action string `json:"action,omitempty"`
	Dir    string `json:"dir,omitempty"`
	// Settings override values read from the project's .xcrc.
	Settings map[string]string `json:"settings,omitempty"`
	Stop     bool              `json:"stop,omitempty"`
}

type ActionResponse struct {
	Handle  string `json:"handle,omitempty"`
	Action  string `json:"action,omitempty"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

type JobOutput struct {
	Handle     string   `json:"handle"`
	Action     string   `json:"action"`
	Stream     string   `json:"stream"`
	Lines      []string `json:"lines"`
	Sequence   int64    `json:"sequence"`
	HappenedAt int64    `json:"happened_at"`
}

type JobExit struct {
	Handle     string `json:"handle"`
	Action     string `json:"action"`
	ExitCode   int    `json:"exit_code"`
	State      string `json:"state"`
	DurationMs int64  `json:"duration_ms"`
	HappenedAt int64  `json:"happened_at"`
}

type StateChanged struct {
	Handle     string `json:"handle,omitempty"`
	Action     string `json:"action,omitempty"`
	State      string `json:"state"`
	Status     string `json:"status"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	HappenedAt int64  `json:"happened_at"`
}

type JobInfo struct {
	Handle    string `json:"handle"`
	Action    string `json:"action"`
	Command   string `json:"command"`
	Dir       string `json:"dir"`
	State     string `json:"state"`
	ExitCode  *int   `json:"exit_code,omitempty"`
	StartedAt int64  `json:"started_at"`
}

type StatusResponse struct {
	State  string   `json:"state"`
	Status string   `json:"status"`
	Job    *JobInfo `json:"job,omitempty"`
}
