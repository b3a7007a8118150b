package chrome

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"

	u "invoice2pdf/internal/infra/logging"
)

type interceptState int32

const (
	awaitingFirstRequest interceptState = iota
	interceptionDisabled
)

func (s interceptState) String() string {
	if s == awaitingFirstRequest {
		return "AwaitingFirstRequest"
	}
	return "InterceptionDisabled"
}

// oneShotInterceptor rewrites the first paused request of a page into a JSON
// POST carrying the payload, then turns request interception off. Requests
// paused after the transition are released untouched.
type oneShotInterceptor struct {
	payload []byte
	state   atomic.Int32

	rewrites atomic.Int32
	released atomic.Int32

	mu  sync.Mutex
	err error
}

func newOneShotInterceptor(payload []byte) *oneShotInterceptor {
	return &oneShotInterceptor{payload: payload}
}

// claim moves the machine to InterceptionDisabled. Only the first caller wins.
func (i *oneShotInterceptor) claim() bool {
	return i.state.CompareAndSwap(int32(awaitingFirstRequest), int32(interceptionDisabled))
}

func (i *oneShotInterceptor) State() interceptState {
	return interceptState(i.state.Load())
}

// Rewrites reports how many requests were rewritten. It never exceeds one.
func (i *oneShotInterceptor) Rewrites() int { return int(i.rewrites.Load()) }

// rewrite builds the continue command for the paused request. The first
// request becomes a JSON POST; every later one is continued as-is.
func (i *oneShotInterceptor) rewrite(id fetch.RequestID) (*fetch.ContinueRequestParams, bool) {
	if !i.claim() {
		i.released.Add(1)
		return fetch.ContinueRequest(id), false
	}
	i.rewrites.Add(1)
	return fetch.ContinueRequest(id).
		WithMethod("POST").
		WithPostData(base64.StdEncoding.EncodeToString(i.payload)).
		WithHeaders([]*fetch.HeaderEntry{
			{Name: "Content-Type", Value: "application/json"},
		}), true
}

func (i *oneShotInterceptor) setErr(err error) {
	i.mu.Lock()
	if i.err == nil {
		i.err = err
	}
	i.mu.Unlock()
}

// Err returns the first failure of the rewrite or the disable command.
func (i *oneShotInterceptor) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// listen registers the interceptor on the page held by ctx. Listener
// callbacks run on the event loop and must not block, so commands are issued
// from their own goroutine.
func (i *oneShotInterceptor) listen(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go i.handle(ctx, paused)
	})
}

func (i *oneShotInterceptor) handle(ctx context.Context, ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(ctx, c.Target)

	params, first := i.rewrite(ev.RequestID)
	if first {
		url := ""
		if ev.Request != nil {
			url = ev.Request.URL
		}
		u.Info("Intercepted render request", "url", url, "payload_bytes", len(i.payload))
	}
	if err := params.Do(execCtx); err != nil {
		if first {
			i.setErr(err)
		}
		u.Warn("Continue intercepted request failed", "error", err, "rewritten", first)
		return
	}
	if first {
		if err := fetch.Disable().Do(execCtx); err != nil {
			i.setErr(err)
			u.Warn("Disabling request interception failed", "error", err)
		}
	}
}
