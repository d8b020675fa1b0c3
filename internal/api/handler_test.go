package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hirebench/hirebench/internal/config"
	"github.com/hirebench/hirebench/internal/domain"
	"github.com/hirebench/hirebench/internal/identity"
	"github.com/hirebench/hirebench/internal/judge"
	"github.com/hirebench/hirebench/internal/store"
)

const testCandidate = "cand_0123456789abcdef0123456789abcdef"

func testConfig() *config.Config {
	return &config.Config{
		Port:           "8080",
		DBPath:         "unused",
		FlushInterval:  3 * time.Second,
		PauseThreshold: 10 * time.Second,
		SnapshotEvery:  500,
		SessionTTL:     30 * time.Minute,
		DraftTTL:       30 * 24 * time.Hour,
		Judge:          config.JudgeConfig{Timeout: 10 * time.Second},
	}
}

func newTestServer(t *testing.T, judgeClient *judge.Client) *httptest.Server {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	h := NewHandler(repo, judgeClient, nil, testConfig())
	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// sessionURL builds a question-scoped URL with explicit candidate and
// assessment parameters, the way a reviewer surface addresses a session.
func sessionURL(srv *httptest.Server, question, tail string) string {
	return fmt.Sprintf("%s/api/questions/%s%s?candidate_id=%s&assessment_id=asm-1",
		srv.URL, question, tail, testCandidate)
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func insertAt(ts int64, column int, text string) domain.EditorEvent {
	p := domain.Position{Line: 1, Column: column}
	return domain.EditorEvent{
		Timestamp:    ts,
		Kind:         domain.KindTextChange,
		Range:        &domain.Range{Start: p, End: p},
		InsertedText: text,
	}
}

func TestAppendEventsAndReplayBundle(t *testing.T) {
	srv := newTestServer(t, nil)

	events := []domain.EditorEvent{
		insertAt(5000, 1, "a"),
		insertAt(6000, 2, "b"),
		insertAt(25000, 3, "c"),
	}

	var appended map[string]int
	status := doJSON(t, http.MethodPost, sessionURL(srv, "q-1", "/events"),
		map[string]any{"events": events}, &appended)
	if status != http.StatusOK || appended["appended"] != 3 {
		t.Fatalf("AppendEvents: status=%d body=%v", status, appended)
	}

	var bundle replayBundle
	status = doJSON(t, http.MethodGet, sessionURL(srv, "q-1", "/replay"), nil, &bundle)
	if status != http.StatusOK {
		t.Fatalf("ReplayBundle: status=%d", status)
	}
	if bundle.NoActivity {
		t.Fatal("Bundle marked no_activity for a recorded session")
	}
	if bundle.StartMs != 5000 || bundle.DurationMs != 20000 {
		t.Errorf("start=%d duration=%d, want 5000/20000", bundle.StartMs, bundle.DurationMs)
	}
	if len(bundle.Events) != 3 || bundle.Events[0].Timestamp != 0 {
		t.Errorf("Events not rebased: %+v", bundle.Events)
	}
	if len(bundle.PauseBands) != 1 || bundle.PauseBands[0].DurationMs != 19000 {
		t.Errorf("PauseBands = %+v", bundle.PauseBands)
	}
	if bundle.Session == nil || bundle.Session.EventCount != 3 {
		t.Errorf("Session = %+v", bundle.Session)
	}
}

func TestReplayBundleNoActivity(t *testing.T) {
	srv := newTestServer(t, nil)

	var bundle replayBundle
	status := doJSON(t, http.MethodGet, sessionURL(srv, "q-silent", "/replay"), nil, &bundle)
	if status != http.StatusOK {
		t.Fatalf("ReplayBundle: status=%d", status)
	}
	if !bundle.NoActivity || len(bundle.Events) != 0 {
		t.Errorf("Expected no_activity bundle, got %+v", bundle)
	}
}

func TestAppendEventsRequiresAssessment(t *testing.T) {
	srv := newTestServer(t, nil)

	url := srv.URL + "/api/questions/q-1/events?candidate_id=" + testCandidate
	status := doJSON(t, http.MethodPost, url, map[string]any{"events": []domain.EditorEvent{{Timestamp: 1}}}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400 without assessment", status)
	}
}

func TestQuestionLifecycleHidesHiddenTests(t *testing.T) {
	srv := newTestServer(t, nil)

	var created domain.Question
	status := doJSON(t, http.MethodPost, srv.URL+"/api/questions", map[string]any{
		"title":     "Sum",
		"statement": "Add the two numbers on stdin.",
		"test_cases": []domain.TestCase{
			{Input: "1 2", Expected: "3"},
			{Input: "10 20", Expected: "30", Hidden: true},
		},
	}, &created)
	if status != http.StatusCreated || created.ID == "" {
		t.Fatalf("CreateQuestion: status=%d id=%q", status, created.ID)
	}

	var got domain.Question
	status = doJSON(t, http.MethodGet, srv.URL+"/api/questions/"+created.ID, nil, &got)
	if status != http.StatusOK {
		t.Fatalf("GetQuestion: status=%d", status)
	}
	if len(got.TestCases) != 1 || got.TestCases[0].Hidden {
		t.Errorf("Hidden test cases leaked: %+v", got.TestCases)
	}

	if status = doJSON(t, http.MethodGet, srv.URL+"/api/questions/nope", nil, nil); status != http.StatusNotFound {
		t.Errorf("GetQuestion(absent): status=%d, want 404", status)
	}

	var list struct {
		Questions []struct {
			ID string `json:"id"`
		} `json:"questions"`
	}
	if status = doJSON(t, http.MethodGet, srv.URL+"/api/questions", nil, &list); status != http.StatusOK {
		t.Fatalf("ListQuestions: status=%d", status)
	}
	if len(list.Questions) != 1 || list.Questions[0].ID != created.ID {
		t.Errorf("ListQuestions = %+v", list)
	}
}

func TestDraftRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)

	if status := doJSON(t, http.MethodGet, sessionURL(srv, "q-1", "/draft"), nil, nil); status != http.StatusNotFound {
		t.Fatalf("GetDraft before save: status=%d, want 404", status)
	}

	status := doJSON(t, http.MethodPut, sessionURL(srv, "q-1", "/draft"),
		map[string]string{"language": "go", "source": "package main"}, nil)
	if status != http.StatusOK {
		t.Fatalf("SaveDraft: status=%d", status)
	}

	var draft domain.Draft
	if status = doJSON(t, http.MethodGet, sessionURL(srv, "q-1", "/draft"), nil, &draft); status != http.StatusOK {
		t.Fatalf("GetDraft: status=%d", status)
	}
	if draft.Source != "package main" || draft.Language != "go" {
		t.Errorf("Draft = %+v", draft)
	}
}

func TestSubmitWithoutJudgeUnavailable(t *testing.T) {
	srv := newTestServer(t, nil)

	status := doJSON(t, http.MethodPost, sessionURL(srv, "q-1", "/submissions"),
		map[string]string{"language": "go", "source": "package main"}, nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("Submit without judge: status=%d, want 503", status)
	}
}

func TestSubmitScoresAndRecordsRun(t *testing.T) {
	// Minimal judge: every submission compiles, runs and prints "3".
	fakeJudge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "done", "stdout": "3"})
	}))
	defer fakeJudge.Close()

	srv := newTestServer(t, judge.NewClient(fakeJudge.URL, "", 10*time.Second, nil))

	var created domain.Question
	doJSON(t, http.MethodPost, srv.URL+"/api/questions", map[string]any{
		"title":      "Sum",
		"statement":  "Add.",
		"test_cases": []domain.TestCase{{Input: "1 2", Expected: "3"}},
	}, &created)

	var sub domain.Submission
	status := doJSON(t, http.MethodPost, sessionURL(srv, created.ID, "/submissions"),
		map[string]string{"language": "go", "source": "package main"}, &sub)
	if status != http.StatusOK {
		t.Fatalf("Submit: status=%d", status)
	}
	if sub.Verdict != domain.VerdictPassed || sub.Score != 100 {
		t.Errorf("Submission = verdict %s score %v", sub.Verdict, sub.Score)
	}

	var listed struct {
		Submissions []domain.Submission `json:"submissions"`
	}
	if status = doJSON(t, http.MethodGet, sessionURL(srv, created.ID, "/submissions"), nil, &listed); status != http.StatusOK {
		t.Fatalf("ListSubmissions: status=%d", status)
	}
	if len(listed.Submissions) != 1 || listed.Submissions[0].ID != sub.ID {
		t.Errorf("ListSubmissions = %+v", listed)
	}

	var runs struct {
		Runs []domain.RunRecord `json:"runs"`
	}
	if status = doJSON(t, http.MethodGet, sessionURL(srv, created.ID, "/runs"), nil, &runs); status != http.StatusOK {
		t.Fatalf("RunHistory: status=%d", status)
	}
	if len(runs.Runs) != 1 || runs.Runs[0].Verdict != domain.VerdictPassed {
		t.Errorf("RunHistory = %+v", runs)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	var health map[string]any
	status := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil, &health)
	if status != http.StatusOK {
		t.Fatalf("Health: status=%d", status)
	}
	if health["status"] != "ok" {
		t.Errorf("Health body = %v", health)
	}
	if enabled, ok := health["judge_enabled"].(bool); !ok || enabled {
		t.Errorf("judge_enabled = %v, want false", health["judge_enabled"])
	}
}

func TestIdentityCookieIssuedOnce(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	_ = resp.Body.Close()

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == identity.CandidateCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Candidate cookie not set")
	}
	if !strings.HasPrefix(cookie.Value, "cand_") {
		t.Errorf("Cookie value = %q", cookie.Value)
	}
}
