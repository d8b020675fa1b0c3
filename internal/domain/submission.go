package domain

import "time"

// Verdict is the outcome of scoring one submission against its test cases.
type Verdict string

const (
	VerdictPassed       Verdict = "passed"
	VerdictCompileError Verdict = "compile_error"
	VerdictRuntimeError Verdict = "runtime_error"
	VerdictFailed       Verdict = "failed"
)

// Submission is one scored run of candidate code, stored independently of
// the session event log and joined back onto the timeline by timestamp.
type Submission struct {
	ID            string     `json:"id"`
	Key           SessionKey `json:"key"`
	Language      string     `json:"language"`
	Source        string     `json:"source"`
	Verdict       Verdict    `json:"verdict"`
	Score         float64    `json:"score"`
	TimeMs        int64      `json:"time_ms"`
	MemoryKB      int64      `json:"memory_kb"`
	Stdout        string     `json:"stdout,omitempty"`
	Stderr        string     `json:"stderr,omitempty"`
	CompileOutput string     `json:"compile_output,omitempty"`
	PassedTests   int        `json:"passed_tests"`
	TotalTests    int        `json:"total_tests"`
	SubmittedAt   time.Time  `json:"submitted_at"`
}

// RunRecord is the minimal submission-history row the replay overlay needs.
type RunRecord struct {
	TimestampMs int64   `json:"ts"`
	Verdict     Verdict `json:"verdict"`
	Score       float64 `json:"score"`
}
