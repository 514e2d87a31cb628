package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/agentrt/agentd/internal/apperr"
)

// SessionStore owns the on-disk representation of sessions: metadata
// (atomic JSON), an immutable mount plan, and an append-only transcript.
type SessionStore struct {
	layout Layout

	mu      sync.Mutex
	writers map[string]*JSONLWriter
}

// NewSessionStore constructs a SessionStore rooted at layout.
func NewSessionStore(layout Layout) *SessionStore {
	return &SessionStore{layout: layout, writers: make(map[string]*JSONLWriter)}
}

// Create writes the session's metadata and mount plan. The mount plan is
// immutable once written (spec §3 Invariant "A session's mount plan file
// is immutable once the session exists"); Create fails if it already
// exists.
func (s *SessionStore) Create(meta SessionMetadata, mountPlan any) error {
	mountPlanPath := s.layout.MountPlanPath(meta.ID)
	if _, err := os.Stat(mountPlanPath); err == nil {
		return apperr.Validation("session %s already exists", meta.ID)
	}
	if err := WriteJSONAtomic(mountPlanPath, mountPlan); err != nil {
		return apperr.Internal("write mount plan", err)
	}
	meta.MountPlanPath = mountPlanPath
	return s.SaveMetadata(meta)
}

// SaveMetadata atomically rewrites a session's metadata.json.
func (s *SessionStore) SaveMetadata(meta SessionMetadata) error {
	if err := WriteJSONAtomic(s.layout.SessionMetadataPath(meta.ID), meta); err != nil {
		return apperr.Internal("write session metadata", err)
	}
	return nil
}

// LoadMetadata reads a session's metadata.json.
func (s *SessionStore) LoadMetadata(id string) (SessionMetadata, error) {
	var meta SessionMetadata
	if err := ReadJSON(s.layout.SessionMetadataPath(id), &meta); err != nil {
		if os.IsNotExist(err) {
			return SessionMetadata{}, apperr.NotFound("session %s not found", id)
		}
		return SessionMetadata{}, apperr.Internal("read session metadata", err)
	}
	return meta, nil
}

// LoadMountPlan reads a session's immutable mount plan into dest.
func (s *SessionStore) LoadMountPlan(id string, dest any) error {
	if err := ReadJSON(s.layout.MountPlanPath(id), dest); err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFound("mount plan for session %s not found", id)
		}
		return apperr.Internal("read mount plan", err)
	}
	return nil
}

// AppendTranscript appends one entry to a session's transcript.jsonl,
// flushing immediately (spec §4.10).
func (s *SessionStore) AppendTranscript(sessionID string, entry TranscriptEntry) error {
	w, err := s.writerFor(sessionID)
	if err != nil {
		return apperr.Internal("open transcript writer", err)
	}
	if err := w.Append(entry); err != nil {
		return apperr.Internal("append transcript entry", err)
	}
	return nil
}

// ReadTranscript reads the full persisted transcript for a session.
func (s *SessionStore) ReadTranscript(sessionID string) ([]TranscriptEntry, error) {
	entries, err := ReadJSONL[TranscriptEntry](s.layout.TranscriptPath(sessionID))
	if err != nil {
		return nil, apperr.Internal("read transcript", err)
	}
	return entries, nil
}

func (s *SessionStore) writerFor(sessionID string) (*JSONLWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.writers[sessionID]; ok {
		return w, nil
	}
	w, err := OpenJSONLWriter(s.layout.TranscriptPath(sessionID))
	if err != nil {
		return nil, err
	}
	s.writers[sessionID] = w
	return w, nil
}

// ListSessions scans the sessions directory and returns every session ID
// that has a metadata.json, without parsing each one (spec §4.9 "list
// sessions" is satisfied by pairing this with LoadMetadata per ID).
func (s *SessionStore) ListSessions() ([]string, error) {
	root := filepath.Join(s.layout.Root, "sessions")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, apperr.Internal("list sessions", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), "metadata.json")); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// CloseSession releases the transcript writer for sessionID, if open.
func (s *SessionStore) CloseSession(sessionID string) error {
	s.mu.Lock()
	w, ok := s.writers[sessionID]
	delete(s.writers, sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return w.Close()
}
