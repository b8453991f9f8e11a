package llm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/RealBSMC/KaoYanAssistant/sse"
)

// Client drives one chat-completion provider at a time. A Client is not
// safe for concurrent SendMessage calls; CancelRequest and the state
// accessors are.
type Client struct {
	httpClient *http.Client

	mu           sync.Mutex
	systemPrompt string
	current      ResponseState
	generation   uint64
	cancelFunc   context.CancelFunc

	updates chan ResponseState
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
		current:    idleState(),
		updates:    make(chan ResponseState, 32),
	}
}

// SetSystemPrompt configures the system message prepended to every
// subsequent request.
func (c *Client) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systemPrompt = prompt
}

// Current returns the most recently observed state without consuming from
// Updates — a late subscriber's way to catch up without replayed history.
func (c *Client) Current() ResponseState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Updates returns the channel of state transitions. Loading is sent by
// SendMessage, Idle by CancelRequest, and every other state by the
// request's own goroutine. Sends never block: a state is dropped from the
// channel when its buffer is full, while Current still reports the latest.
func (c *Client) Updates() <-chan ResponseState {
	return c.updates
}

// SendMessage begins a request. Valid only when the client is Idle or in a
// terminal state (Success/Error); otherwise returns ErrRequestInFlight.
func (c *Client) SendMessage(ctx context.Context, next Message, history []Message, provider Provider) error {
	c.mu.Lock()
	if c.current.Kind != StateIdle && c.current.Kind != StateSuccess && c.current.Kind != StateError {
		c.mu.Unlock()
		return ErrRequestInFlight
	}
	c.generation++
	gen := c.generation
	systemPrompt := c.systemPrompt

	reqCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.mu.Unlock()

	c.setState(gen, loadingState())
	go c.run(reqCtx, gen, systemPrompt, history, next, provider)
	return nil
}

// CancelRequest closes the in-flight transport and returns the client to
// Idle without emitting Success. Any state the in-flight request's
// goroutine was about to report is discarded.
func (c *Client) CancelRequest() {
	c.mu.Lock()
	c.generation++
	cancel := c.cancelFunc
	c.cancelFunc = nil
	c.current = idleState()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	nonBlockingSend(c.updates, idleState())
}

// setState applies s if gen is still the current generation — it is not if
// CancelRequest or a newer SendMessage ran since this request started. It
// reports whether the state was applied, so run() can stop promptly after
// a cancellation instead of doing further (wasted) network work.
func (c *Client) setState(gen uint64, s ResponseState) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	c.current = s
	c.mu.Unlock()
	nonBlockingSend(c.updates, s)
	return true
}

func nonBlockingSend(ch chan ResponseState, s ResponseState) {
	select {
	case ch <- s:
	default:
	}
}

func (c *Client) run(ctx context.Context, gen uint64, systemPrompt string, history []Message, next Message, provider Provider) {
	d, err := dialectFor(provider.Kind)
	if err != nil {
		c.setState(gen, errorState(err.Error()))
		return
	}

	reqBody, err := d.buildRequest(provider, systemPrompt, history, next)
	if err != nil {
		c.setState(gen, errorState(err.Error()))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint(provider), bytes.NewReader(reqBody))
	if err != nil {
		c.setState(gen, errorState(err.Error()))
		return
	}
	for key, values := range d.headers(provider) {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setState(gen, errorState(err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.setState(gen, errorState(fmt.Sprintf("llm: unexpected status %d", resp.StatusCode)))
		return
	}

	c.streamResponse(ctx, gen, d, resp)
}

func (c *Client) streamResponse(ctx context.Context, gen uint64, d dialect, resp *http.Response) {
	decoder := sse.NewDecoder(resp.Body)
	var accumulated strings.Builder

	for decoder.Next() {
		if ctx.Err() != nil {
			return
		}

		frame := decoder.Current()
		data := bytes.TrimSpace(frame.Data)
		if string(data) == "[DONE]" {
			c.setState(gen, successState(accumulated.String()))
			return
		}

		delta, ok := d.extractDelta(data)
		if !ok || delta == "" {
			continue
		}
		accumulated.WriteString(delta)
		if !c.setState(gen, streamingState(delta, accumulated.String())) {
			return
		}
	}

	if err := decoder.Error(); err != nil {
		if accumulated.Len() > 0 {
			c.setState(gen, successState(accumulated.String()))
		} else {
			c.setState(gen, errorState(err.Error()))
		}
		return
	}

	// Stream closed cleanly without an explicit [DONE] frame.
	c.setState(gen, successState(accumulated.String()))
}
