// Package locator finds dynamically rendered elements by polling a
// dom.Document within a fixed retry budget.
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stripedl/internal/clock"
	"stripedl/internal/dom"
	"stripedl/internal/logging"
)

// ErrNotFound matches every *NotFoundError.
var ErrNotFound = errors.New("element not found")

// NotFoundError is returned once every attempt has timed out.
type NotFoundError struct {
	Strategy string
	Attempts int
	Elapsed  time.Duration
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element %s not found after %d attempts", e.Strategy, e.Attempts)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Options is the retry budget of a lookup.
type Options struct {
	MaxAttempts int
	// Timeout bounds each attempt. Every attempt probes at least once.
	Timeout time.Duration
	// Interval is the pause between probes within an attempt.
	Interval time.Duration
	// Backoff is the pause between attempts.
	Backoff time.Duration
}

// DefaultOptions returns 10 attempts of 10s, polling every 500ms with a 1s
// pause between attempts.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 10,
		Timeout:     10 * time.Second,
		Interval:    500 * time.Millisecond,
		Backoff:     time.Second,
	}
}

// Option adjusts Options for a single lookup.
type Option func(*Options)

// WithAttempts overrides MaxAttempts.
func WithAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithBackoff overrides the pause between attempts.
func WithBackoff(d time.Duration) Option {
	return func(o *Options) { o.Backoff = d }
}

// Locator is a bounded polling element finder.
type Locator struct {
	doc   dom.Document
	clock clock.Clock
	log   *logging.Logger
	opts  Options
}

// New creates a Locator. A nil logger discards output.
func New(doc dom.Document, c clock.Clock, log *logging.Logger, opts Options) *Locator {
	if log == nil {
		log = logging.Discard()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Locator{doc: doc, clock: c, log: log, opts: opts}
}

// Options returns the default budget of this locator.
func (l *Locator) Options() Options {
	return l.opts
}

// Find polls until a visible element matches s or the budget is exhausted.
func (l *Locator) Find(ctx context.Context, s dom.Strategy, overrides ...Option) (dom.Element, error) {
	o := l.opts
	for _, fn := range overrides {
		fn(&o)
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}

	start := l.clock.Now()
	for attempt := 1; attempt <= o.MaxAttempts; attempt++ {
		el, err := l.attempt(ctx, s, o, attempt)
		if err != nil {
			return nil, err
		}
		if el != nil {
			return el, nil
		}

		l.log.Infof("attempt %d/%d: %s not found, retrying", attempt, o.MaxAttempts, s)
		if attempt < o.MaxAttempts && o.Backoff > 0 {
			if err := l.clock.Sleep(ctx, o.Backoff); err != nil {
				return nil, err
			}
		}
	}

	return nil, &NotFoundError{
		Strategy: s.String(),
		Attempts: o.MaxAttempts,
		Elapsed:  l.clock.Now().Sub(start),
	}
}

// attempt polls for one Timeout window. It returns (nil, nil) when the
// window closes without a match.
func (l *Locator) attempt(ctx context.Context, s dom.Strategy, o Options, n int) (dom.Element, error) {
	started := l.clock.Now()
	for {
		el, err := l.doc.Query(ctx, s)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			l.log.Warnf("attempt %d: probe for %s failed: %v", n, s, err)
		case el != nil:
			l.log.Debugf("attempt %d: found %s: %s", n, s, el.Info())
			return el, nil
		}

		elapsed := l.clock.Now().Sub(started)
		if elapsed >= o.Timeout {
			return nil, nil
		}
		wait := o.Interval
		if remaining := o.Timeout - elapsed; remaining < wait {
			wait = remaining
		}
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// Probe performs a single lookup with no retry. It returns (nil, nil) when
// nothing matches.
func (l *Locator) Probe(ctx context.Context, s dom.Strategy) (dom.Element, error) {
	el, err := l.doc.Query(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", s, err)
	}
	return el, nil
}
