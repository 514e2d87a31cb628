package store

import (
	"os"
	"sync"

	"github.com/agentrt/agentd/internal/apperr"
)

// AutomationStore owns the on-disk representation of automations: one
// JSON file per automation, an index for per-project listing without a
// directory scan, and one JSONL execution-history file per automation.
type AutomationStore struct {
	layout Layout
	mu     sync.Mutex
}

// NewAutomationStore constructs an AutomationStore rooted at layout.
func NewAutomationStore(layout Layout) *AutomationStore {
	return &AutomationStore{layout: layout}
}

// Save atomically writes an automation and updates the project index.
// Within a project, automation name is unique (spec §3 Invariants); Save
// rejects a write that would collide with a different automation already
// registered under the same (ProjectID, Name).
func (s *AutomationStore) Save(a Automation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNameUnique(a.ProjectID, a.ID, a.Name); err != nil {
		return err
	}

	if err := WriteJSONAtomic(s.layout.AutomationPath(a.ID), a); err != nil {
		return apperr.Internal("write automation", err)
	}
	return s.addToIndex(a.ProjectID, a.ID)
}

// checkNameUnique scans the project's existing automations, loading each
// to compare Name, and fails with a validation error (surfaced as HTTP 400
// by internal/httpapi) if a different automation already has this name.
func (s *AutomationStore) checkNameUnique(projectID, id, name string) error {
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	for _, existingID := range idx.ProjectAutomations[projectID] {
		if existingID == id {
			continue
		}
		existing, err := s.Load(existingID)
		if err != nil {
			continue
		}
		if existing.Name == name {
			return apperr.Validation("duplicate automation name %q in project %s", name, projectID)
		}
	}
	return nil
}

// Load reads one automation by id.
func (s *AutomationStore) Load(id string) (Automation, error) {
	var a Automation
	if err := ReadJSON(s.layout.AutomationPath(id), &a); err != nil {
		if os.IsNotExist(err) {
			return Automation{}, apperr.NotFound("automation %s not found", id)
		}
		return Automation{}, apperr.Internal("read automation", err)
	}
	return a, nil
}

// ListProject returns every automation ID registered under projectID.
func (s *AutomationStore) ListProject(projectID string) ([]string, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return idx.ProjectAutomations[projectID], nil
}

// ListAll returns every automation across all projects, by reading each
// from the index (used by the scheduler's start()).
func (s *AutomationStore) ListAll() ([]Automation, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	var out []Automation
	for _, ids := range idx.ProjectAutomations {
		for _, id := range ids {
			a, err := s.Load(id)
			if err != nil {
				continue
			}
			out = append(out, a)
		}
	}
	return out, nil
}

// Delete removes an automation's JSON file, its execution history, and
// its index entry transactionally: the index is rewritten first, so a
// crash mid-delete leaves at worst an orphaned file, never a dangling
// index reference (spec §3 "deleted transactionally on delete").
func (s *AutomationStore) Delete(projectID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.removeFromIndex(projectID, id); err != nil {
		return err
	}
	_ = os.Remove(s.layout.AutomationPath(id))
	_ = os.Remove(s.layout.ExecutionsPath(id))
	return nil
}

func (s *AutomationStore) loadIndex() (AutomationIndex, error) {
	var idx AutomationIndex
	if err := ReadJSON(s.layout.AutomationIndexPath(), &idx); err != nil {
		if os.IsNotExist(err) {
			return AutomationIndex{ProjectAutomations: make(map[string][]string)}, nil
		}
		return AutomationIndex{}, apperr.Internal("read automation index", err)
	}
	if idx.ProjectAutomations == nil {
		idx.ProjectAutomations = make(map[string][]string)
	}
	return idx, nil
}

func (s *AutomationStore) addToIndex(projectID, id string) error {
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	for _, existing := range idx.ProjectAutomations[projectID] {
		if existing == id {
			return nil
		}
	}
	idx.ProjectAutomations[projectID] = append(idx.ProjectAutomations[projectID], id)
	return WriteJSONAtomic(s.layout.AutomationIndexPath(), idx)
}

func (s *AutomationStore) removeFromIndex(projectID, id string) error {
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	ids := idx.ProjectAutomations[projectID]
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	idx.ProjectAutomations[projectID] = out
	return WriteJSONAtomic(s.layout.AutomationIndexPath(), idx)
}

// AppendExecution appends a record to automations/executions/<id>.jsonl
// and does not update the automation's last_execution (callers do that
// via Save after setting Automation.LastExecution, keeping the two writes
// independent so a failure in one doesn't corrupt the other).
func (s *AutomationStore) AppendExecution(automationID string, record ExecutionRecord) error {
	w, err := OpenJSONLWriter(s.layout.ExecutionsPath(automationID))
	if err != nil {
		return apperr.Internal("open execution history", err)
	}
	defer w.Close()
	if err := w.Append(record); err != nil {
		return apperr.Internal("append execution record", err)
	}
	return nil
}

// ListExecutions reads an automation's full execution history.
func (s *AutomationStore) ListExecutions(automationID string) ([]ExecutionRecord, error) {
	records, err := ReadJSONL[ExecutionRecord](s.layout.ExecutionsPath(automationID))
	if err != nil {
		return nil, apperr.Internal("read execution history", err)
	}
	return records, nil
}
