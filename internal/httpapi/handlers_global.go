package httpapi

import "net/http"

// handleGlobalStream implements spec §4.9's "Subscribe to a global event
// stream": a daemon-wide SSE feed of automation firings (and any future
// cross-session notification), independent of any particular session.
func (rt *Router) handleGlobalStream(w http.ResponseWriter, r *http.Request) {
	sub := rt.bus.subscribe()
	defer rt.bus.unsubscribe(sub)

	flusher := setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeSSE(w, flusher, ev.Name, ev.Data); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
