package chrome

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// idleLifecycleEvent is Chrome's "no more than 2 connections for 500ms".
const idleLifecycleEvent = "networkAlmostIdle"

// navWatcher records, per loader, the status of the document response and
// whether the loader reached network idle. Events can arrive before the
// navigate command returns its loader id, so everything is buffered.
type navWatcher struct {
	mu       sync.Mutex
	statuses map[cdp.LoaderID]int64
	idle     map[cdp.LoaderID]bool
	notify   chan struct{}
}

func newNavWatcher() *navWatcher {
	return &navWatcher{
		statuses: make(map[cdp.LoaderID]int64),
		idle:     make(map[cdp.LoaderID]bool),
		notify:   make(chan struct{}, 1),
	}
}

func (w *navWatcher) listen(ctx context.Context) {
	chromedp.ListenTarget(ctx, w.onEvent)
}

func (w *navWatcher) onEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventResponseReceived:
		if ev.Type != network.ResourceTypeDocument || ev.Response == nil {
			return
		}
		w.mu.Lock()
		if _, seen := w.statuses[ev.LoaderID]; !seen {
			w.statuses[ev.LoaderID] = ev.Response.Status
		}
		w.mu.Unlock()
	case *page.EventLifecycleEvent:
		if ev.Name != idleLifecycleEvent {
			return
		}
		w.mu.Lock()
		w.idle[ev.LoaderID] = true
		w.mu.Unlock()
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

// wait blocks until loader reaches network idle. The returned status is zero
// when no document response was observed.
func (w *navWatcher) wait(ctx context.Context, loader cdp.LoaderID) (int64, error) {
	for {
		w.mu.Lock()
		done := w.idle[loader]
		status := w.statuses[loader]
		w.mu.Unlock()
		if done {
			return status, nil
		}
		select {
		case <-w.notify:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
