package browser

import (
	"context"
	"os"
	"testing"

	"stripedl/internal/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementInfo(t *testing.T) {
	j := jsElement{Tag: "button", Text: "Export", ClassName: "Button ExportButton", Role: "button", Visible: true}
	assert.Equal(t, dom.ElementInfo{Tag: "button", Text: "Export", Class: "Button ExportButton", Role: "button", Visible: true}, j.info())
}

const livePage = `<html><body>
	<button id="hidden" style="display:none">Export</button>
	<div role="dialog"><button id="confirm" class="ExportButton">Export</button></div>
	<a href="#">Close</a>
</body></html>`

// Launching Chrome is opt-in.
func TestLivePage(t *testing.T) {
	if os.Getenv("STRIPEDL_BROWSER_TESTS") == "" {
		t.Skip("set STRIPEDL_BROWSER_TESTS=1 to run against a real browser")
	}
	ctx := context.Background()

	b, err := New(Config{Headless: true, DownloadDir: t.TempDir()}, nil)
	require.NoError(t, err)
	defer b.Close()

	p, err := b.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Rod().SetDocumentContent(livePage))

	el, err := p.Query(ctx, dom.Text("export"))
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "ExportButton", el.Info().Class)
	assert.True(t, el.Info().Visible)

	el, err = p.Query(ctx, dom.Selector("#hidden"))
	require.NoError(t, err)
	assert.Nil(t, el)

	el, err = p.Query(ctx, dom.XPath(`//div[@role="dialog"]/button`))
	require.NoError(t, err)
	require.NotNil(t, el)
	require.NoError(t, el.Click(ctx))

	el, err = p.Query(ctx, dom.AnyOf(dom.XPath("//*["), dom.Text("close", "a")))
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "Close", el.Info().Text)

	clickables, err := p.Clickables(ctx)
	require.NoError(t, err)
	assert.Len(t, clickables, 3)

	require.NoError(t, p.Notify(ctx, "Looking for export button...", dom.NoticeInfo))
	html, err := p.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "stripedl-notification")

	tab, err := b.ActiveTab(ctx)
	require.NoError(t, err)
	require.NotNil(t, tab)
	assert.Equal(t, p.ID(), tab.ID)
}

func TestLiveScriptClickFiresOnce(t *testing.T) {
	if os.Getenv("STRIPEDL_BROWSER_TESTS") == "" {
		t.Skip("set STRIPEDL_BROWSER_TESTS=1 to run against a real browser")
	}
	ctx := context.Background()

	b, err := New(Config{Headless: true, DownloadDir: t.TempDir()}, nil)
	require.NoError(t, err)
	defer b.Close()

	p, err := b.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Rod().SetDocumentContent(`<button onclick="window.clicks = (window.clicks || 0) + 1">Export</button>`))

	found, err := p.Query(ctx, dom.Text("export"))
	require.NoError(t, err)
	require.NotNil(t, found)

	_, err = found.(*element).el.Eval(forceClickScript)
	require.NoError(t, err)
	res, err := p.Rod().Eval(`() => window.clicks`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Value.Int())
}
