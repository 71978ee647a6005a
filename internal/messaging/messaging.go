// Package messaging carries the JSON messages exchanged by the trigger UI,
// the controller and the page agents.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"stripedl/internal/logging"
)

// Actions understood by the components.
const (
	ActionEnsureContentScript = "ensureContentScript"
	ActionDownloadInvoices    = "downloadInvoices"
	ActionDownloadStarted     = "downloadStarted"
	ActionUpdateStatus        = "updateStatus"
)

// Message is a request or notice.
type Message struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Response answers a Message.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	File    string `json:"file,omitempty"`
}

// Fail builds an unsuccessful Response from err.
func Fail(err error) *Response {
	return &Response{Success: false, Error: err.Error()}
}

// Endpoint names a receiver on the bus.
type Endpoint string

const (
	Controller Endpoint = "controller"
	Popup      Endpoint = "popup"
)

const tabPrefix = "tab:"

// Tab is the endpoint of the page agent attached to tab id.
func Tab(id string) Endpoint {
	return Endpoint(tabPrefix + id)
}

// IsTab reports whether e addresses a page agent.
func (e Endpoint) IsTab() bool {
	return strings.HasPrefix(string(e), tabPrefix)
}

// Handler receives messages. A nil *Response means no reply was sent.
type Handler interface {
	Handle(ctx context.Context, msg Message) *Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) *Response

func (f HandlerFunc) Handle(ctx context.Context, msg Message) *Response {
	return f(ctx, msg)
}

// ErrNoReceiver is a transport failure: nothing listens on the endpoint.
var ErrNoReceiver = errors.New("could not establish connection: receiving end does not exist")

// Envelope is one delivered or attempted message.
type Envelope struct {
	To      Endpoint
	Message Message
}

// Bus routes messages in-process. Every message and response is encoded to
// JSON and decoded again so that only the wire contract crosses components.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Endpoint]*registration
	history  []Envelope
	log      *logging.Logger
}

// NewBus creates an empty bus. A nil logger discards output.
func NewBus(log *logging.Logger) *Bus {
	if log == nil {
		log = logging.Discard()
	}
	return &Bus{handlers: make(map[Endpoint]*registration), log: log}
}

type registration struct {
	h Handler
}

// Register attaches h to ep, replacing any previous handler. The returned
// function detaches it.
func (b *Bus) Register(ep Endpoint, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	reg := &registration{h: h}
	b.handlers[ep] = reg
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.handlers[ep] == reg {
			delete(b.handlers, ep)
		}
	}
}

// Registered reports whether a handler listens on ep.
func (b *Bus) Registered(ep Endpoint) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.handlers[ep]
	return ok
}

// History returns every message sent so far, in order.
func (b *Bus) History() []Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Envelope, len(b.history))
	copy(out, b.history)
	return out
}

func (b *Bus) route(to Endpoint, msg Message) (Handler, Message, error) {
	wire, err := json.Marshal(msg)
	if err != nil {
		return nil, Message{}, fmt.Errorf("failed to encode message: %w", err)
	}
	var decoded Message
	if err := json.Unmarshal(wire, &decoded); err != nil {
		return nil, Message{}, fmt.Errorf("failed to decode message: %w", err)
	}

	b.mu.Lock()
	b.history = append(b.history, Envelope{To: to, Message: decoded})
	reg, ok := b.handlers[to]
	b.mu.Unlock()

	b.log.Debugf("-> %s %s", to, wire)
	if !ok {
		return nil, decoded, ErrNoReceiver
	}
	return reg.h, decoded, nil
}

// Send delivers msg to ep and waits for the reply. A (nil, nil) result means
// the receiver did not answer.
func (b *Bus) Send(ctx context.Context, to Endpoint, msg Message) (*Response, error) {
	h, decoded, err := b.route(to, msg)
	if err != nil {
		return nil, err
	}
	resp := h.Handle(ctx, decoded)
	if resp == nil {
		return nil, nil
	}

	wire, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	var out Response
	if err := json.Unmarshal(wire, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	b.log.Debugf("<- %s %s", to, wire)
	return &out, nil
}

// Notify delivers msg without waiting for a reply. Missing receivers are
// ignored.
func (b *Bus) Notify(ctx context.Context, to Endpoint, msg Message) {
	h, decoded, err := b.route(to, msg)
	if err != nil {
		b.log.Debugf("notice %s to %s dropped: %v", msg.Action, to, err)
		return
	}
	_ = h.Handle(ctx, decoded)
}
