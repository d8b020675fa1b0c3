// Package identity provides anonymous per-candidate identity primitives.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	CandidateCookieName = "hb_candidate_id"
	AssessmentHeader    = "X-HB-Assessment-ID"

	candidateCookieMaxAge = 90 * 24 * time.Hour
)

type contextKey int

const (
	candidateIDKey contextKey = iota
	assessmentIDKey
)

var (
	candidateIDPattern  = regexp.MustCompile(`^cand_[a-f0-9]{32}$`)
	assessmentIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// CandidateIDFromContext extracts the candidate ID from the request context.
func CandidateIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(candidateIDKey).(string); ok {
		return v
	}
	return ""
}

// AssessmentIDFromContext extracts the assessment ID from the request
// context, or "" if the request carried none.
func AssessmentIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(assessmentIDKey).(string); ok {
		return v
	}
	return ""
}

func generateCandidateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate candidate id: %w", err)
	}
	return "cand_" + hex.EncodeToString(buf), nil
}

func isValidCandidateID(id string) bool {
	return candidateIDPattern.MatchString(id)
}

func sanitizeAssessmentID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !assessmentIDPattern.MatchString(id) {
		return ""
	}
	return id
}

func getOrCreateCandidateID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(CandidateCookieName); err == nil && isValidCandidateID(c.Value) {
		setCandidateCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateCandidateID()
	if err != nil {
		return "", err
	}
	setCandidateCookie(w, id, isDev)
	return id, nil
}

func setCandidateCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CandidateCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(candidateCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(candidateCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func assessmentIDFromRequest(r *http.Request) string {
	id := r.Header.Get(AssessmentHeader)
	if id == "" {
		id = r.URL.Query().Get("assessment_id")
	}
	return sanitizeAssessmentID(id)
}

// Middleware injects anonymous per-candidate identity and the active
// assessment ID into the request context.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidateID, err := getOrCreateCandidateID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish candidate identity"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), candidateIDKey, candidateID)
			ctx = context.WithValue(ctx, assessmentIDKey, assessmentIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
