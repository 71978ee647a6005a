package stripe

import (
	"encoding/json"
	"testing"
	"time"

	"stripedl/internal/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportFormats(t *testing.T) {
	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	r := NewReport(agent.Outcome{Success: true, Message: "Download started!", File: "downloads/stripe_invoices_20240501_090012.csv"},
		"https://dashboard.stripe.com/invoices", started, started.Add(12*time.Second))

	text, err := r.ToText()
	require.NoError(t, err)
	assert.Contains(t, text, "Stripe invoice export: success")
	assert.Contains(t, text, "File: downloads/stripe_invoices_20240501_090012.csv")
	assert.Contains(t, text, "Duration: 12s")

	md, err := r.ToMarkdown()
	require.NoError(t, err)
	assert.Contains(t, md, "| Status | success |")

	raw, err := r.ToJSON()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, float64(12000), decoded["duration_ms"])
	assert.Equal(t, "https://dashboard.stripe.com/invoices", decoded["page"])
}

func TestReportFailure(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	r := NewReport(agent.Outcome{Error: "element selector x not found after 5 attempts"}, "", now, now)

	text, err := r.ToText()
	require.NoError(t, err)
	assert.Contains(t, text, "failed")
	assert.Contains(t, text, "Error: element selector x not found after 5 attempts")
	assert.False(t, r.Outcome().Success)
}
