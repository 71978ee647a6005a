package dom

import (
	"context"
	"fmt"
)

// ElementInfo is what the flow and the diagnostics know about an element.
type ElementInfo struct {
	Tag     string `json:"tag"`
	Text    string `json:"text"`
	Class   string `json:"class"`
	Role    string `json:"role,omitempty"`
	Visible bool   `json:"visible"`
}

func (i ElementInfo) String() string {
	text := i.Text
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	return fmt.Sprintf("<%s class=%q role=%q visible=%t> %q", i.Tag, i.Class, i.Role, i.Visible, text)
}

// Element is a target reference: a handle to a visible element, discarded
// after the click that consumes it.
type Element interface {
	Info() ElementInfo
	Click(ctx context.Context) error
	// Input replaces the element's value with text, as a user typing would.
	Input(ctx context.Context, text string) error
}

// Document answers lookups against the current DOM.
type Document interface {
	// Query performs one probe. It returns (nil, nil) when no visible element
	// matches s.
	Query(ctx context.Context, s Strategy) (Element, error)
}

// NoticeKind is the styling of an in-page notification.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Page is a browser tab as seen by the page agent.
type Page interface {
	Document
	URL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	// WaitLoad blocks until the document has finished loading.
	WaitLoad(ctx context.Context) error
	Reload(ctx context.Context) error
	// Notify shows a transient notification inside the page.
	Notify(ctx context.Context, message string, kind NoticeKind) error
	HTML(ctx context.Context) (string, error)
	Clickables(ctx context.Context) ([]ElementInfo, error)
}

// Downloader is implemented by pages that can capture file downloads.
type Downloader interface {
	// ExpectDownload arms a watcher before the action that triggers the
	// download. The returned function blocks until the file is on disk and
	// returns its path.
	ExpectDownload(ctx context.Context) (func(ctx context.Context) (string, error), error)
}
