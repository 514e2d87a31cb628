package store

import (
	"testing"
	"time"

	"github.com/agentrt/agentd/internal/apperr"
)

func TestAutomationStore_SaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	a := Automation{
		ID:        "auto-1",
		ProjectID: "proj-1",
		Name:      "nightly digest",
		Message:   "summarize today",
		Schedule:  ScheduleConfig{Type: ScheduleCron, Value: "0 9 * * *"},
		Enabled:   true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.Save(a); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load("auto-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Name != "nightly digest" {
		t.Errorf("expected name to round-trip, got %v", loaded.Name)
	}
	if loaded.Schedule.Type != ScheduleCron {
		t.Errorf("expected schedule type cron, got %v", loaded.Schedule.Type)
	}
}

func TestAutomationStore_Load_NotFound(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	if _, err := s.Load("missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestAutomationStore_ListProject(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	_ = s.Save(Automation{ID: "a1", ProjectID: "p1", Name: "n1"})
	_ = s.Save(Automation{ID: "a2", ProjectID: "p1", Name: "n2"})
	_ = s.Save(Automation{ID: "a3", ProjectID: "p2", Name: "n3"})

	ids, err := s.ListProject("p1")
	if err != nil {
		t.Fatalf("ListProject failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 automations for p1, got %d", len(ids))
	}

	ids, err = s.ListProject("p2")
	if err != nil {
		t.Fatalf("ListProject failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 automation for p2, got %d", len(ids))
	}
}

func TestAutomationStore_Save_IsIdempotentInIndex(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	a := Automation{ID: "a1", ProjectID: "p1", Name: "v1"}
	_ = s.Save(a)
	a.Name = "v2"
	_ = s.Save(a)

	ids, err := s.ListProject("p1")
	if err != nil {
		t.Fatalf("ListProject failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected exactly 1 index entry after repeated saves, got %d", len(ids))
	}

	loaded, err := s.Load("a1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Name != "v2" {
		t.Errorf("expected latest save to win, got %v", loaded.Name)
	}
}

func TestAutomationStore_Save_RejectsDuplicateNameInProject(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	if err := s.Save(Automation{ID: "a1", ProjectID: "p1", Name: "nightly digest"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	err := s.Save(Automation{ID: "a2", ProjectID: "p1", Name: "nightly digest"})
	if err == nil {
		t.Fatal("expected duplicate automation name to be rejected")
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected a validation-kind error, got %v", err)
	}

	if _, loadErr := s.Load("a2"); loadErr == nil {
		t.Error("expected the rejected automation to not be persisted")
	}
}

func TestAutomationStore_Save_AllowsSameNameInDifferentProjects(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	if err := s.Save(Automation{ID: "a1", ProjectID: "p1", Name: "nightly digest"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(Automation{ID: "a2", ProjectID: "p2", Name: "nightly digest"}); err != nil {
		t.Errorf("expected same name to be allowed across different projects, got %v", err)
	}
}

func TestAutomationStore_Save_AllowsRenamingTheSameAutomation(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	a := Automation{ID: "a1", ProjectID: "p1", Name: "v1"}
	if err := s.Save(a); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	a.Name = "v1" // re-saving with its own unchanged name must not collide with itself
	if err := s.Save(a); err != nil {
		t.Errorf("expected re-saving an automation under its own name to succeed, got %v", err)
	}
}

func TestAutomationStore_Delete_RemovesFileAndIndexEntry(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	_ = s.Save(Automation{ID: "a1", ProjectID: "p1", Name: "n1"})
	_ = s.Save(Automation{ID: "a2", ProjectID: "p1", Name: "n2"})

	if err := s.Delete("p1", "a1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.Load("a1"); err == nil {
		t.Error("expected deleted automation to be gone")
	}

	ids, err := s.ListProject("p1")
	if err != nil {
		t.Fatalf("ListProject failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a2" {
		t.Errorf("expected only a2 to remain in index, got %v", ids)
	}
}

func TestAutomationStore_ListAll(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	_ = s.Save(Automation{ID: "a1", ProjectID: "p1"})
	_ = s.Save(Automation{ID: "a2", ProjectID: "p2"})

	all, err := s.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 automations across all projects, got %d", len(all))
	}
}

func TestAutomationStore_ExecutionHistory(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	rec1 := ExecutionRecord{ID: "e1", AutomationID: "a1", SessionID: "s1", ExecutedAt: time.Now(), Status: ExecutionSuccess}
	rec2 := ExecutionRecord{ID: "e2", AutomationID: "a1", SessionID: "s2", ExecutedAt: time.Now(), Status: ExecutionFailed, Error: "timeout"}

	if err := s.AppendExecution("a1", rec1); err != nil {
		t.Fatalf("AppendExecution failed: %v", err)
	}
	if err := s.AppendExecution("a1", rec2); err != nil {
		t.Fatalf("AppendExecution failed: %v", err)
	}

	records, err := s.ListExecutions("a1")
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 execution records, got %d", len(records))
	}
	if records[1].Status != ExecutionFailed || records[1].Error != "timeout" {
		t.Errorf("expected second record to preserve failure details, got %+v", records[1])
	}
}

func TestAutomationStore_ListExecutions_EmptyWhenNone(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewAutomationStore(NewLayout(tmpDir))

	records, err := s.ListExecutions("never-ran")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty history, got %v", records)
	}
}
