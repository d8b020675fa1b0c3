package domain

import "testing"

func TestSessionKeyString(t *testing.T) {
	key := SessionKey{CandidateID: "cand_ab", AssessmentID: "asm-1", QuestionID: "q-1"}
	if got := key.String(); got != "cand_ab:asm-1:q-1" {
		t.Errorf("String() = %q", got)
	}
}

func TestSessionKeyValid(t *testing.T) {
	tests := []struct {
		name string
		key  SessionKey
		want bool
	}{
		{"complete", SessionKey{"c", "a", "q"}, true},
		{"missing candidate", SessionKey{"", "a", "q"}, false},
		{"missing assessment", SessionKey{"c", "", "q"}, false},
		{"missing question", SessionKey{"c", "a", ""}, false},
	}
	for _, tt := range tests {
		if got := tt.key.Valid(); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestVisibleTestCases(t *testing.T) {
	q := Question{TestCases: []TestCase{
		{Input: "1", Expected: "1"},
		{Input: "2", Expected: "2", Hidden: true},
		{Input: "3", Expected: "3"},
	}}

	visible := q.VisibleTestCases()
	if len(visible) != 2 {
		t.Fatalf("VisibleTestCases returned %d, want 2", len(visible))
	}
	for _, tc := range visible {
		if tc.Hidden {
			t.Errorf("Hidden case leaked: %+v", tc)
		}
	}
	// The original slice is untouched.
	if len(q.TestCases) != 3 {
		t.Errorf("TestCases mutated: %d", len(q.TestCases))
	}
}
