package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stripedl/internal/htmldoc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoicesPage = `<html><head><title>Invoices</title><style>.x{}</style></head><body>
<h1>Invoices</h1>
<p>Showing <strong>3</strong> invoices</p>
<script>window.boot()</script>
<button data-testid="export-modal-button" class="Btn | primary">Export</button>
<div hidden><p>secret panel</p></div>
<a href="/invoices/new">Create invoice</a>
</body></html>`

func capture(t *testing.T) *Snapshot {
	t.Helper()
	doc, err := htmldoc.New("https://dashboard.stripe.com/invoices", invoicesPage)
	require.NoError(t, err)
	s, err := Capture(context.Background(), doc, "export button not found", time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	return s
}

func TestCapture(t *testing.T) {
	s := capture(t)
	assert.Equal(t, "https://dashboard.stripe.com/invoices", s.URL)
	assert.Contains(t, s.HTML, "export-modal-button")
	require.Len(t, s.Clickables, 2)
	assert.Equal(t, "button", s.Clickables[0].Tag)
	assert.Equal(t, "a", s.Clickables[1].Tag)
}

func TestBodyMarkdown(t *testing.T) {
	body, err := capture(t).BodyMarkdown()
	require.NoError(t, err)

	assert.Contains(t, body, "# Invoices")
	assert.Contains(t, body, "**3**")
	assert.Contains(t, body, "[Create invoice](/invoices/new)")
	assert.NotContains(t, body, "window.boot")
	assert.NotContains(t, body, "secret panel")
}

func TestToMarkdown(t *testing.T) {
	report, err := capture(t).ToMarkdown()
	require.NoError(t, err)

	assert.Contains(t, report, "- Reason: export button not found")
	assert.Contains(t, report, "## Clickable elements (2)")
	assert.Contains(t, report, `| 0 | button |  | true | Btn \| primary | Export |`)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	htmlPath, mdPath, err := capture(t).Write(dir)
	require.NoError(t, err)

	assert.FileExists(t, htmlPath)
	assert.FileExists(t, mdPath)
	assert.Contains(t, htmlPath, "snapshot-20240501_093000.html")

	data, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Page snapshot")
}

func TestSave(t *testing.T) {
	doc, err := htmldoc.New("https://dashboard.stripe.com/login", invoicesPage)
	require.NoError(t, err)
	dir := t.TempDir()

	mdPath, err := Save(context.Background(), doc, dir, "login timed out", time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.FileExists(t, mdPath)
	assert.FileExists(t, filepath.Join(dir, "snapshot-20240501_093000.html"))
}

func TestSaveDisabledSkipsCapture(t *testing.T) {
	var mdPath string
	var err error
	// A nil page would panic if it were read.
	assert.NotPanics(t, func() {
		mdPath, err = Save(context.Background(), nil, "", "login timed out", time.Now())
	})
	require.NoError(t, err)
	assert.Empty(t, mdPath)
}
