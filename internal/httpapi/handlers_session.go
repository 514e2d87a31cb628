package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

func (rt *Router) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := rt.sessions.ListSessions()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponseFrom(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyValidationError(w, err.Error())
		return
	}
	if req.ProfileID == "" {
		writeFieldValidationErrors(w, []ValidationError{{Loc: "profile_id", Msg: "profile_id is required", Type: "missing"}})
		return
	}

	var mountPlan any
	if len(req.MountPlan) > 0 {
		if err := json.Unmarshal(req.MountPlan, &mountPlan); err != nil {
			writeBodyValidationError(w, "mount_plan: "+err.Error())
			return
		}
	}

	meta, err := rt.sessions.CreateSession(r.Context(), req.ProfileID, mountPlan)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponseFrom(meta))
}

func (rt *Router) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	meta, err := rt.sessions.GetMetadata(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFrom(meta))
}

// handleAppendMessage implements spec §4.9's "Append user message (persist
// only)": it writes to the transcript without invoking the orchestrator.
func (rt *Router) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyValidationError(w, err.Error())
		return
	}
	if req.Content == "" {
		writeFieldValidationErrors(w, []ValidationError{{Loc: "content", Msg: "content is required", Type: "missing"}})
		return
	}
	if err := rt.sessions.AppendUserMessage(id, req.Content); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleExecute implements spec §4.9's "Execute" operation: an SSE stream
// of token/hook events ending with assistant_message_complete or
// execution_error, bridging session.Manager.ExecuteSync.
func (rt *Router) handleExecute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyValidationError(w, err.Error())
		return
	}
	if req.Content == "" {
		writeFieldValidationErrors(w, []ValidationError{{Loc: "content", Msg: "content is required", Type: "missing"}})
		return
	}

	events, err := rt.sessions.ExecuteSync(r.Context(), id, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher := setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	for ev := range events {
		if writeErr := writeSSE(w, flusher, ev.Name, ev.Data); writeErr != nil {
			// Client disconnected; drain the rest so ExecuteSync's goroutine
			// doesn't block trying to deliver to a channel nobody reads.
			go func() {
				for range events {
				}
			}()
			return
		}
	}
}

// handleSendMessage implements spec §4.9's "Send message for execution
// (202)": the turn runs in the background and events arrive on the
// session's persistent /stream subscribers.
func (rt *Router) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyValidationError(w, err.Error())
		return
	}
	if req.Content == "" {
		writeFieldValidationErrors(w, []ValidationError{{Loc: "content", Msg: "content is required", Type: "missing"}})
		return
	}
	if err := rt.sessions.SendMessage(r.Context(), id, req.Content); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SendMessageAccepted{Accepted: true, SessionID: id})
}

func (rt *Router) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entries, err := rt.sessions.GetTranscript(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TranscriptResponse{SessionID: id, Entries: entries})
}

// handleSessionStream implements spec §4.9's "Subscribe to session stream":
// a long-lived SSE connection fed by session.Manager.Subscribe, open until
// the client disconnects.
func (rt *Router) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := rt.sessions.GetMetadata(id); err != nil {
		writeError(w, err)
		return
	}

	sub := rt.sessions.Subscribe(id)
	defer rt.sessions.Unsubscribe(id, sub)

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
