package domain

import "time"

// TestCase is one input/expected-output pair for a question. Hidden cases
// are scored but never shown to candidates.
type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Hidden   bool   `json:"hidden,omitempty"`
}

// Question is a problem statement with its test cases and per-language
// starter scaffolds.
type Question struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Statement  string            `json:"statement"`
	Topic      string            `json:"topic,omitempty"`
	Difficulty string            `json:"difficulty,omitempty"`
	TestCases  []TestCase        `json:"test_cases"`
	Scaffolds  map[string]string `json:"scaffolds,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// VisibleTestCases returns the test cases a candidate may see.
func (q *Question) VisibleTestCases() []TestCase {
	visible := make([]TestCase, 0, len(q.TestCases))
	for _, tc := range q.TestCases {
		if !tc.Hidden {
			visible = append(visible, tc)
		}
	}
	return visible
}
