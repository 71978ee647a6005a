package stripe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stripedl/internal/agent"
)

// Report describes one export run and implements formatter.Content.
type Report struct {
	outcome  agent.Outcome
	tabURL   string
	started  time.Time
	finished time.Time
}

// NewReport creates a new Report instance.
func NewReport(outcome agent.Outcome, tabURL string, started, finished time.Time) *Report {
	return &Report{outcome: outcome, tabURL: tabURL, started: started, finished: finished}
}

// Outcome returns the reported outcome.
func (r *Report) Outcome() agent.Outcome {
	return r.outcome
}

func (r *Report) status() string {
	if r.outcome.Success {
		return "success"
	}
	return "failed"
}

func (r *Report) ToText() (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Stripe invoice export: %s\n", r.status()))
	if r.tabURL != "" {
		sb.WriteString(fmt.Sprintf("Page: %s\n", r.tabURL))
	}
	if r.outcome.Message != "" {
		sb.WriteString(r.outcome.Message + "\n")
	}
	if r.outcome.Error != "" {
		sb.WriteString("Error: " + r.outcome.Error + "\n")
	}
	if r.outcome.File != "" {
		sb.WriteString(fmt.Sprintf("File: %s\n", r.outcome.File))
	}
	sb.WriteString(fmt.Sprintf("Duration: %s\n", r.finished.Sub(r.started).Round(time.Millisecond)))
	return sb.String(), nil
}

func (r *Report) ToMarkdown() (string, error) {
	var sb strings.Builder
	sb.WriteString("# Stripe invoice export\n\n")
	sb.WriteString("| Field | Value |\n| --- | --- |\n")
	sb.WriteString(fmt.Sprintf("| Status | %s |\n", r.status()))
	if r.tabURL != "" {
		sb.WriteString(fmt.Sprintf("| Page | %s |\n", r.tabURL))
	}
	if r.outcome.Message != "" {
		sb.WriteString(fmt.Sprintf("| Message | %s |\n", r.outcome.Message))
	}
	if r.outcome.Error != "" {
		sb.WriteString(fmt.Sprintf("| Error | %s |\n", strings.ReplaceAll(r.outcome.Error, "|", `\|`)))
	}
	if r.outcome.File != "" {
		sb.WriteString(fmt.Sprintf("| File | `%s` |\n", r.outcome.File))
	}
	sb.WriteString(fmt.Sprintf("| Started | %s |\n", r.started.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Finished | %s |\n", r.finished.Format(time.RFC3339)))
	return sb.String(), nil
}

func (r *Report) ToJSON() ([]byte, error) {
	type jsonReport struct {
		agent.Outcome
		Page       string    `json:"page,omitempty"`
		StartedAt  time.Time `json:"started_at"`
		FinishedAt time.Time `json:"finished_at"`
		DurationMS int64     `json:"duration_ms"`
	}
	return json.MarshalIndent(jsonReport{
		Outcome:    r.outcome,
		Page:       r.tabURL,
		StartedAt:  r.started,
		FinishedAt: r.finished,
		DurationMS: r.finished.Sub(r.started).Milliseconds(),
	}, "", "  ")
}
