package htmldoc

import (
	"context"
	"testing"

	"stripedl/internal/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><body>
<div id="merch">
  <button class="Btn" style="display: none">Export hidden</button>
  <button class="Btn" data-testid="export-modal-button">Export</button>
  <div role="button" class="Link">Export all</div>
  <span class="export-action" role="button">Go</span>
  <div hidden><button class="export">Invisible export</button></div>
  <a href="#">Close</a>
</div>
</body></html>`

func newDoc(t *testing.T) *Document {
	t.Helper()
	d, err := New("https://dashboard.stripe.com/invoices", page)
	require.NoError(t, err)
	return d
}

func TestQueryStrategies(t *testing.T) {
	ctx := context.Background()
	d := newDoc(t)

	tests := []struct {
		name     string
		strategy dom.Strategy
		wantText string
	}{
		{"selector", dom.Selector(`[data-testid="export-modal-button"]`), "Export"},
		{"selector skips hidden first match", dom.Selector("button.Btn"), "Export"},
		{"text", dom.Text("EXPORT"), "Export"},
		{"role text", dom.RoleText("export all"), "Export all"},
		{"class", dom.ClassContains("EXPORT-"), "Go"},
		{"xpath", dom.XPath(`//*[@id="merch"]/div[1]`), "Export all"},
		{"close link", dom.Text("close", "button", "a"), "Close"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := d.Query(ctx, tt.strategy)
			require.NoError(t, err)
			require.NotNil(t, el)
			assert.Equal(t, tt.wantText, el.Info().Text)
			assert.True(t, el.Info().Visible)
		})
	}
}

func TestQueryNeverReturnsInvisible(t *testing.T) {
	ctx := context.Background()
	d := newDoc(t)

	for _, s := range []dom.Strategy{
		dom.Text("invisible"),
		dom.Text("export hidden"),
		dom.XPath(`//div[@hidden]/button`),
		dom.Selector("body"),
	} {
		el, err := d.Query(ctx, s)
		require.NoError(t, err)
		assert.Nil(t, el, s.String())
	}
}

func TestQueryAnyOfOrder(t *testing.T) {
	d := newDoc(t)
	el, err := d.Query(context.Background(), dom.AnyOf(
		dom.XPath(`//*[@id="nope"]`),
		dom.RoleText("export"),
		dom.Text("export"),
	))
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "Export all", el.Info().Text)
}

func TestQueryInvalidXPath(t *testing.T) {
	d := newDoc(t)
	_, err := d.Query(context.Background(), dom.XPath("//*["))
	assert.Error(t, err)
}

func TestQueryAnyOfSkipsFailingAlternative(t *testing.T) {
	d, err := New("https://dashboard.stripe.com/invoices", `<html><body><button>Export</button></body></html>`)
	require.NoError(t, err)

	el, err := d.Query(context.Background(), dom.AnyOf(dom.XPath("//*["), dom.Text("export")))
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "Export", el.Info().Text)

	_, err = d.Query(context.Background(), dom.AnyOf(dom.XPath("//*["), dom.Text("missing")))
	assert.ErrorContains(t, err, "invalid xpath")
}

func TestClickRunsHooksAndDetaches(t *testing.T) {
	ctx := context.Background()
	d := newDoc(t)
	d.OnClick(`[data-testid="export-modal-button"]`, func(d *Document) {
		require.NoError(t, d.SetHTML(`<html><body><div role="dialog"><button>Export</button></div></body></html>`))
	})

	open, err := d.Query(ctx, dom.Selector(`[data-testid="export-modal-button"]`))
	require.NoError(t, err)
	require.NoError(t, open.Click(ctx))

	assert.ErrorIs(t, open.Click(ctx), ErrDetached)

	confirm, err := d.Query(ctx, dom.Text("export"))
	require.NoError(t, err)
	require.NotNil(t, confirm)
	require.NoError(t, confirm.Click(ctx))

	clicks := d.EventsOf(EventClick)
	require.Len(t, clicks, 2)
	assert.Equal(t, "export-modal-button", clicks[0].Target)
	assert.Equal(t, "Export", clicks[1].Target)
}

func TestInputSetsValue(t *testing.T) {
	ctx := context.Background()
	d, err := New("https://dashboard.stripe.com/login", `<html><body><form><input name="email"></form></body></html>`)
	require.NoError(t, err)

	el, err := d.Query(ctx, dom.Selector(`input[name="email"]`))
	require.NoError(t, err)
	require.NoError(t, el.Input(ctx, "ops@example.com"))

	out, err := d.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, `value="ops@example.com"`)
	assert.Equal(t, "ops@example.com", d.EventsOf(EventInput)[0].Value)
}

func TestPageOperations(t *testing.T) {
	ctx := context.Background()
	d := newDoc(t)
	navigated := ""
	d.OnNavigate(func(_ *Document, url string) { navigated = url })

	require.NoError(t, d.Navigate(ctx, "https://dashboard.stripe.com/payments"))
	require.NoError(t, d.Reload(ctx))
	require.NoError(t, d.Notify(ctx, "hello", dom.NoticeSuccess))

	url, err := d.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://dashboard.stripe.com/payments", url)
	assert.Equal(t, url, navigated)
	assert.Equal(t, 1, d.Reloads())
	assert.Equal(t, "hello", d.EventsOf(EventNotify)[0].Value)

	clickables, err := d.Clickables(ctx)
	require.NoError(t, err)
	assert.Len(t, clickables, 6)
}

func TestExpectDownload(t *testing.T) {
	ctx := context.Background()
	d := newDoc(t)

	wait, err := d.ExpectDownload(ctx)
	require.NoError(t, err)
	_, err = wait(ctx)
	assert.ErrorIs(t, err, ErrNoDownload)

	d.SetDownload("/tmp/x.csv")
	path, err := wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.csv", path)
}
