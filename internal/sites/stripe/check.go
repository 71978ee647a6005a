package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stripedl/internal/clock"
	"stripedl/internal/dom"
	"stripedl/internal/locator"
)

// CheckResult is the outcome of one lookup against a page.
type CheckResult struct {
	Step     string `json:"step"`
	Strategy string `json:"strategy"`
	Found    bool   `json:"found"`
	Element  string `json:"element,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CheckReport lists which flow controls a page exposes. It implements
// formatter.Content.
type CheckReport struct {
	Source  string        `json:"source"`
	Results []CheckResult `json:"results"`
}

// Check probes doc once for every control of the export flow and the login
// markers.
func Check(ctx context.Context, doc dom.Document, source string) (*CheckReport, error) {
	steps := Steps()
	named := []struct {
		name string
		s    dom.Strategy
	}{
		{"open", steps.Open},
		{"confirm", steps.Confirm},
		{"close", steps.Close},
		{"date-range", steps.DateRange},
		{"all-time", steps.AllTime},
		{"dashboard", DashboardMarkers()},
		{"login-error", LoginErrorBanner()},
	}

	loc := locator.New(doc, clock.Real{}, nil, locator.Options{MaxAttempts: 1})
	report := &CheckReport{Source: source}
	for _, n := range named {
		r := CheckResult{Step: n.name, Strategy: n.s.String()}
		el, err := loc.Probe(ctx, n.s)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.Error = err.Error()
		case el != nil:
			r.Found = true
			r.Element = el.Info().String()
		}
		report.Results = append(report.Results, r)
	}
	return report, nil
}

// Found reports whether step matched.
func (r *CheckReport) Found(step string) bool {
	for _, res := range r.Results {
		if res.Step == step {
			return res.Found
		}
	}
	return false
}

func (r *CheckReport) ToText() (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Checked %s\n\n", r.Source))
	for _, res := range r.Results {
		status := "missing"
		if res.Found {
			status = "found"
		}
		if res.Error != "" {
			status = "error"
		}
		sb.WriteString(fmt.Sprintf("%-12s %-8s %s\n", res.Step, status, res.Strategy))
		if res.Element != "" {
			sb.WriteString(fmt.Sprintf("%-12s %-8s -> %s\n", "", "", res.Element))
		}
		if res.Error != "" {
			sb.WriteString(fmt.Sprintf("%-12s %-8s !! %s\n", "", "", res.Error))
		}
	}
	return sb.String(), nil
}

func (r *CheckReport) ToMarkdown() (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Strategy check: %s\n\n", r.Source))
	sb.WriteString("| Step | Found | Strategy | Element |\n| --- | --- | --- | --- |\n")
	for _, res := range r.Results {
		found := "no"
		if res.Found {
			found = "yes"
		}
		el := res.Element
		if res.Error != "" {
			el = "error: " + res.Error
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | `%s` | %s |\n", res.Step, found,
			strings.ReplaceAll(res.Strategy, "|", `\|`), strings.ReplaceAll(el, "|", `\|`)))
	}
	return sb.String(), nil
}

func (r *CheckReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
