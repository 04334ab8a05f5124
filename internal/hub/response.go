package hub

import (
	"sync"
	"time"

	"github.com/dshills/eventhub/internal/event"
	"github.com/dshills/eventhub/internal/event/dispatch"
)

type responseListener struct {
	once  sync.Once
	fn    func(*event.Event)
	timer *time.Timer
}

// fire runs fn at most once. A panic in fn is recovered.
func (rl *responseListener) fire(evt *event.Event) {
	rl.once.Do(func() {
		dispatch.Execute(func() { rl.fn(evt) })
	})
}

// RegisterResponseListener calls fn once with the first dispatched event
// that responds to trigger, or with nil once timeout elapses. A non-positive
// timeout uses the hub default. fn runs on the hub's event goroutine or a
// timer goroutine and must not block.
func (h *Hub) RegisterResponseListener(trigger *event.Event, timeout time.Duration, fn func(*event.Event)) {
	if trigger == nil || fn == nil {
		return
	}
	if timeout <= 0 {
		timeout = h.opts.responseTimeout
	}

	id := trigger.ID()
	rl := &responseListener{fn: fn}

	h.respMu.Lock()
	defer h.respMu.Unlock()

	rl.timer = time.AfterFunc(timeout, func() {
		if h.removeResponse(id, rl) {
			h.logger.Debug().Str("trigger", id).Msg("response listener timed out")
			rl.fire(nil)
		}
	})
	h.responses[id] = append(h.responses[id], rl)
}

// removeResponse drops rl and reports whether it was still registered.
func (h *Hub) removeResponse(id string, rl *responseListener) bool {
	h.respMu.Lock()
	defer h.respMu.Unlock()

	listeners := h.responses[id]
	for i, l := range listeners {
		if l != rl {
			continue
		}
		listeners = append(listeners[:i], listeners[i+1:]...)
		if len(listeners) == 0 {
			delete(h.responses, id)
		} else {
			h.responses[id] = listeners
		}
		return true
	}
	return false
}

// notifyResponse delivers evt to listeners waiting on its trigger.
func (h *Hub) notifyResponse(evt *event.Event) {
	if !evt.IsResponse() {
		return
	}

	h.respMu.Lock()
	listeners := h.responses[evt.ResponseID()]
	delete(h.responses, evt.ResponseID())
	h.respMu.Unlock()

	for _, rl := range listeners {
		rl.timer.Stop()
		rl.fire(evt)
	}
}
