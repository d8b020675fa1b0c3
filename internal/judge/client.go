// Package judge dispatches candidate code to the remote execution sandbox
// and scores the results against a question's test cases.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hirebench/hirebench/internal/domain"
)

const pollInterval = 500 * time.Millisecond

// Client talks to the remote judge over HTTP. The judge is an opaque
// collaborator: submit source plus stdin, poll until a terminal status,
// read stdout/stderr/compile output and resource usage.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a judge client. timeout bounds one full run including
// polling.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// RunRequest is one execution of candidate code against one stdin.
type RunRequest struct {
	Source   string `json:"source"`
	Language string `json:"language"`
	Stdin    string `json:"stdin"`
}

// RunOutcome is the sandbox's report for one execution.
type RunOutcome struct {
	Status        string
	Stdout        string
	Stderr        string
	CompileOutput string
	TimeMs        int64
	MemoryKB      int64
}

// Compiled reports whether the run got past compilation.
func (o *RunOutcome) Compiled() bool {
	return o.Status != statusCompileError
}

// Sandbox statuses. Anything else terminal is treated as a runtime failure.
const (
	statusQueued       = "queued"
	statusRunning      = "running"
	statusDone         = "done"
	statusCompileError = "compile_error"
	statusRuntimeError = "runtime_error"
	statusTimeout      = "timeout"
)

type submitResponse struct {
	Token string `json:"token"`
}

type statusResponse struct {
	Status        string `json:"status"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	TimeMs        int64  `json:"time_ms"`
	MemoryKB      int64  `json:"memory_kb"`
}

// Run submits one execution and polls until the sandbox reports a terminal
// status or ctx expires.
func (c *Client) Run(ctx context.Context, req RunRequest) (*RunOutcome, error) {
	token, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}

	for {
		st, err := c.status(ctx, token)
		if err != nil {
			return nil, err
		}
		if st.Status != statusQueued && st.Status != statusRunning {
			return &RunOutcome{
				Status:        st.Status,
				Stdout:        st.Stdout,
				Stderr:        st.Stderr,
				CompileOutput: st.CompileOutput,
				TimeMs:        st.TimeMs,
				MemoryKB:      st.MemoryKB,
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for judge result: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (c *Client) submit(ctx context.Context, req RunRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal judge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submissions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build judge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit to judge: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("judge submit returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decode judge submit response: %w", err)
	}
	if sr.Token == "" {
		return "", fmt.Errorf("judge submit response missing token")
	}
	return sr.Token, nil
}

func (c *Client) status(ctx context.Context, token string) (*statusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/submissions/"+token, nil)
	if err != nil {
		return nil, fmt.Errorf("build judge status request: %w", err)
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("poll judge: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("judge status returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode judge status response: %w", err)
	}
	return &st, nil
}

// ScoreResult aggregates one source's runs across all test cases.
type ScoreResult struct {
	Verdict       domain.Verdict
	Score         float64 // percentage of passed test cases
	PassedTests   int
	TotalTests    int
	TimeMs        int64 // max across runs
	MemoryKB      int64 // max across runs
	Stdout        string
	Stderr        string
	CompileOutput string
}

// Score runs the source against every test case and folds the outcomes into
// a single verdict: compile errors short-circuit, any runtime error or
// timeout dominates a wrong answer, and a full pass scores 100.
func (c *Client) Score(ctx context.Context, source, language string, tests []domain.TestCase) (*ScoreResult, error) {
	if len(tests) == 0 {
		return nil, fmt.Errorf("no test cases to score")
	}

	result := &ScoreResult{
		Verdict:    domain.VerdictPassed,
		TotalTests: len(tests),
	}

	for i, tc := range tests {
		outcome, err := c.Run(ctx, RunRequest{Source: source, Language: language, Stdin: tc.Input})
		if err != nil {
			return nil, fmt.Errorf("run test case %d: %w", i, err)
		}

		if outcome.TimeMs > result.TimeMs {
			result.TimeMs = outcome.TimeMs
		}
		if outcome.MemoryKB > result.MemoryKB {
			result.MemoryKB = outcome.MemoryKB
		}
		if result.Stdout == "" {
			result.Stdout = outcome.Stdout
		}
		if result.Stderr == "" {
			result.Stderr = outcome.Stderr
		}

		if !outcome.Compiled() {
			result.Verdict = domain.VerdictCompileError
			result.CompileOutput = outcome.CompileOutput
			result.Score = 0
			result.PassedTests = 0
			return result, nil
		}

		switch outcome.Status {
		case statusDone:
			if strings.TrimSpace(outcome.Stdout) == strings.TrimSpace(tc.Expected) {
				result.PassedTests++
			} else if result.Verdict == domain.VerdictPassed {
				result.Verdict = domain.VerdictFailed
			}
		default:
			// runtime_error, timeout, or any unknown terminal status
			result.Verdict = domain.VerdictRuntimeError
		}
	}

	if result.TotalTests > 0 {
		result.Score = float64(result.PassedTests) / float64(result.TotalTests) * 100
	}

	c.logger.Debug("submission scored",
		"verdict", result.Verdict,
		"passed", result.PassedTests,
		"total", result.TotalTests)

	return result, nil
}
