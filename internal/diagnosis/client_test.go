package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"assist-platform/internal/transport"
)

func newBackend(t *testing.T, handler http.HandlerFunc) (*Client, *transport.Chain, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	chain := transport.NewChain("")
	client := NewClient(transport.NewClient(transport.ClientConfig{Name: "diagnosis", BaseURL: srv.URL}, chain, nil))
	return client, chain, srv.Close
}

func TestGetReportPresentsScopedBearer(t *testing.T) {
	var gotAuth, gotPath string
	client, chain, done := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Report{ID: "diag-1", CaseID: "case-1", Status: "ready"})
	})
	defer done()

	release := chain.AcquireScoped("scoped-tok")
	defer release()

	report, err := client.GetReport(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if report.ID != "diag-1" || report.CaseID != "case-1" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if gotAuth != "Bearer scoped-tok" {
		t.Fatalf("expected scoped bearer, got %q", gotAuth)
	}
	if gotPath != "/cases/case-1/diagnosis" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestGetReportMapsNotFound(t *testing.T) {
	client, _, done := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer done()

	if _, err := client.GetReport(context.Background(), "case-1"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestScopedRejectionIsTerminal(t *testing.T) {
	client, chain, done := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer done()

	release := chain.AcquireScoped("scoped-tok")
	defer release()

	// A rejected scoped credential must never surface as a session problem:
	// there is no login to redirect to.
	_, err := client.GetReport(context.Background(), "case-1")
	if !errors.Is(err, transport.ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
	if errors.Is(err, transport.ErrSessionExpired) {
		t.Fatalf("scoped rejection must not look like session expiry")
	}
}

func TestSubmitAnswers(t *testing.T) {
	var body struct {
		Answers []Answer `json:"answers"`
	}
	client, _, done := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Report{ID: "diag-1", CaseID: "case-1", Status: "updated"})
	})
	defer done()

	report, err := client.SubmitAnswers(context.Background(), "case-1", []Answer{{QuestionID: "q1", Value: "won't start"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if report.Status != "updated" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(body.Answers) != 1 || body.Answers[0].QuestionID != "q1" {
		t.Fatalf("unexpected submitted body: %+v", body)
	}

	if _, err := client.SubmitAnswers(context.Background(), "case-1", nil); err == nil {
		t.Fatalf("expected error for empty answers")
	}
}
