package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"assist-platform/internal/transport"
)

// The diagnosis backend is an opaque collaborator: this client knows bearer
// tokens go in and JSON comes out, nothing about how reports are produced.

var ErrReportNotFound = errors.New("diagnosis: report not found")

// Report is a case's diagnosis record as served by the backend. Sections is
// kept raw: its shape belongs to the backend and the report renderers.
type Report struct {
	ID      string `json:"id"`
	CaseID  string `json:"case_id"`
	Status  string `json:"status"`
	Summary string `json:"summary,omitempty"`

	Sections json.RawMessage `json:"sections,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Answer is one questionnaire response from the client chat flow.
type Answer struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

type Client struct {
	http *transport.Client
}

func NewClient(httpClient *transport.Client) *Client {
	return &Client{http: httpClient}
}

// GetReport fetches the diagnosis report for a case.
func (c *Client) GetReport(ctx context.Context, caseID string) (Report, error) {
	var report Report
	resp, err := c.http.NewRequest(ctx).
		SetPathParam("caseID", caseID).
		SetResult(&report).
		Get("/cases/{caseID}/diagnosis")
	if err != nil {
		return Report{}, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return Report{}, ErrReportNotFound
	}
	if resp.IsError() {
		return Report{}, fmt.Errorf("diagnosis: get report: unexpected status %d", resp.StatusCode())
	}
	return report, nil
}

// SubmitAnswers pushes questionnaire answers for a case and returns the
// updated report.
func (c *Client) SubmitAnswers(ctx context.Context, caseID string, answers []Answer) (Report, error) {
	if len(answers) == 0 {
		return Report{}, errors.New("diagnosis: no answers to submit")
	}

	var report Report
	resp, err := c.http.NewRequest(ctx).
		SetPathParam("caseID", caseID).
		SetBody(map[string]any{"answers": answers}).
		SetResult(&report).
		Post("/cases/{caseID}/answers")
	if err != nil {
		return Report{}, err
	}
	if resp.IsError() {
		return Report{}, fmt.Errorf("diagnosis: submit answers: unexpected status %d", resp.StatusCode())
	}
	return report, nil
}

// MarkReviewed records the workshop's reception review on the report.
func (c *Client) MarkReviewed(ctx context.Context, caseID, notes string) error {
	resp, err := c.http.NewRequest(ctx).
		SetPathParam("caseID", caseID).
		SetBody(map[string]any{"notes": notes}).
		Post("/cases/{caseID}/diagnosis/review")
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrReportNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("diagnosis: mark reviewed: unexpected status %d", resp.StatusCode())
	}
	return nil
}
