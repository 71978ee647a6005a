package locator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stripedl/internal/clock"
	"stripedl/internal/dom"
	"stripedl/internal/htmldoc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

const emptyPage = `<html><body><main><p>No invoices yet</p></main></body></html>`

func testOptions() Options {
	return Options{MaxAttempts: 3, Timeout: 2 * time.Second, Interval: 500 * time.Millisecond, Backoff: time.Second}
}

// delayed hides every match for the first n probes.
type delayed struct {
	mu     sync.Mutex
	inner  dom.Document
	hidden int
	probes int
}

func (d *delayed) Query(ctx context.Context, s dom.Strategy) (dom.Element, error) {
	d.mu.Lock()
	d.probes++
	hide := d.probes <= d.hidden
	d.mu.Unlock()
	if hide {
		return nil, nil
	}
	return d.inner.Query(ctx, s)
}

// flaky fails the first n probes.
type flaky struct {
	inner dom.Document
	fails int
	calls int
}

func (f *flaky) Query(ctx context.Context, s dom.Strategy) (dom.Element, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, errors.New("cdp: target closed")
	}
	return f.inner.Query(ctx, s)
}

func TestFindExhaustsExactlyMaxAttempts(t *testing.T) {
	strategies := []dom.Strategy{
		dom.Selector(`[data-testid="export-modal-button"]`),
		dom.Text("export"),
		dom.RoleText("export"),
		dom.ClassContains("export"),
		dom.XPath(`//*[@id="merch"]/div[5]/button`),
		dom.AnyOf(dom.Text("export"), dom.ClassContains("export")),
	}
	for _, s := range strategies {
		t.Run(string(s.Kind), func(t *testing.T) {
			doc, err := htmldoc.New("https://dashboard.stripe.com/invoices", emptyPage)
			require.NoError(t, err)
			c := clock.NewFake(epoch)
			l := New(doc, c, nil, testOptions())

			el, err := l.Find(context.Background(), s)
			assert.Nil(t, el)

			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Equal(t, 3, nf.Attempts)
			assert.Equal(t, s.String(), nf.Strategy)
			assert.Contains(t, err.Error(), s.String())
			assert.Contains(t, err.Error(), "after 3 attempts")

			// probes at 0, .5, 1, 1.5, 2s in each attempt
			assert.Equal(t, 15, doc.Queries())
			// 3 windows of 2s plus 2 backoffs of 1s
			assert.Equal(t, 8*time.Second, nf.Elapsed)
			assert.Equal(t, epoch.Add(8*time.Second), c.Now())
		})
	}
}

func TestFindWithoutBackoffTakesAttemptsTimesTimeout(t *testing.T) {
	doc, err := htmldoc.New("https://dashboard.stripe.com/invoices", emptyPage)
	require.NoError(t, err)
	c := clock.NewFake(epoch)
	l := New(doc, c, nil, Options{MaxAttempts: 5, Timeout: 20 * time.Second, Interval: 500 * time.Millisecond})

	_, err = l.Find(context.Background(), dom.Selector("#export"))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 100*time.Second, nf.Elapsed)
}

func TestFindClampsLastInterval(t *testing.T) {
	doc, err := htmldoc.New("https://dashboard.stripe.com/invoices", emptyPage)
	require.NoError(t, err)
	c := clock.NewFake(epoch)
	l := New(doc, c, nil, Options{MaxAttempts: 1, Timeout: 1200 * time.Millisecond, Interval: 500 * time.Millisecond})

	_, err = l.Find(context.Background(), dom.Selector("#export"))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 4, doc.Queries())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond, 200 * time.Millisecond}, c.Sleeps())
}

func TestFindZeroTimeoutProbesOncePerAttempt(t *testing.T) {
	doc, err := htmldoc.New("https://dashboard.stripe.com/invoices", emptyPage)
	require.NoError(t, err)
	l := New(doc, clock.NewFake(epoch), nil, Options{MaxAttempts: 2, Interval: time.Second})

	_, err = l.Find(context.Background(), dom.Selector("#export"))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, doc.Queries())
}

func TestFindReturnsAsSoonAsVisible(t *testing.T) {
	inner, err := htmldoc.New("https://dashboard.stripe.com/invoices",
		`<html><body><button data-testid="export-modal-button">Export</button></body></html>`)
	require.NoError(t, err)
	doc := &delayed{inner: inner, hidden: 7}
	c := clock.NewFake(epoch)
	l := New(doc, c, nil, testOptions())

	el, err := l.Find(context.Background(), dom.Selector(`[data-testid="export-modal-button"]`))
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "Export", el.Info().Text)
	assert.Equal(t, 8, doc.probes)
	// attempt 1: 5 probes over 2s, backoff 1s, attempt 2: probes at 0, .5, 1
	assert.Equal(t, epoch.Add(4*time.Second), c.Now())
}

func TestFindNeverReturnsInvisibleElement(t *testing.T) {
	doc, err := htmldoc.New("https://dashboard.stripe.com/invoices", `<html><body>
		<button style="display:none">Export</button>
		<div hidden><button class="export">Export</button></div>
	</body></html>`)
	require.NoError(t, err)
	l := New(doc, clock.NewFake(epoch), nil, testOptions())

	for _, s := range []dom.Strategy{dom.Text("export"), dom.ClassContains("export"), dom.Selector("button")} {
		el, err := l.Find(context.Background(), s)
		assert.Nil(t, el)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestFindTreatsProbeErrorsAsMisses(t *testing.T) {
	inner, err := htmldoc.New("https://dashboard.stripe.com/invoices", `<html><body><button>Export</button></body></html>`)
	require.NoError(t, err)
	doc := &flaky{inner: inner, fails: 2}
	l := New(doc, clock.NewFake(epoch), nil, testOptions())

	el, err := l.Find(context.Background(), dom.Text("export"))
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, 3, doc.calls)
}

func TestFindCanceled(t *testing.T) {
	doc, err := htmldoc.New("https://dashboard.stripe.com/invoices", emptyPage)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = New(doc, clock.NewFake(epoch), nil, testOptions()).Find(ctx, dom.Text("export"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFindOverrides(t *testing.T) {
	doc, err := htmldoc.New("https://dashboard.stripe.com/invoices", emptyPage)
	require.NoError(t, err)
	l := New(doc, clock.NewFake(epoch), nil, testOptions())

	_, err = l.Find(context.Background(), dom.Text("export"), WithAttempts(1), WithTimeout(time.Second), WithBackoff(0))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 1, nf.Attempts)
	assert.Equal(t, time.Second, nf.Elapsed)
	assert.Equal(t, testOptions(), l.Options())
}

func TestProbe(t *testing.T) {
	doc, err := htmldoc.New("https://dashboard.stripe.com/invoices", `<html><body><a>Close</a></body></html>`)
	require.NoError(t, err)
	l := New(doc, clock.NewFake(epoch), nil, testOptions())

	el, err := l.Probe(context.Background(), dom.Text("close", "button", "a"))
	require.NoError(t, err)
	assert.NotNil(t, el)

	el, err = l.Probe(context.Background(), dom.Text("missing"))
	require.NoError(t, err)
	assert.Nil(t, el)
	assert.Equal(t, 2, doc.Queries())

	_, err = l.Probe(context.Background(), dom.XPath("//*["))
	assert.Error(t, err)
}

func TestFindAnyOfPastInvalidXPath(t *testing.T) {
	doc, err := htmldoc.New("https://dashboard.stripe.com/invoices", `<html><body><button>Export</button></body></html>`)
	require.NoError(t, err)
	c := clock.NewFake(epoch)
	l := New(doc, c, nil, testOptions())

	el, err := l.Find(context.Background(), dom.AnyOf(dom.XPath("//*["), dom.Text("export")))
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "Export", el.Info().Text)
	assert.Equal(t, 1, doc.Queries())
	assert.Equal(t, epoch, c.Now())
}
