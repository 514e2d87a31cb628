package store

import (
	"sync"

	"github.com/agentrt/agentd/internal/apperr"
)

// ApprovalAuditLog appends approval/denial decisions to audit/approvals.jsonl.
// One log spans the whole daemon, not one per session, since approvals are a
// cross-session operational record (spec §4.10).
type ApprovalAuditLog struct {
	mu     sync.Mutex
	writer *JSONLWriter
}

// OpenApprovalAuditLog opens the daemon-wide approval audit log rooted at
// layout.
func OpenApprovalAuditLog(layout Layout) (*ApprovalAuditLog, error) {
	w, err := OpenJSONLWriter(layout.ApprovalAuditPath())
	if err != nil {
		return nil, apperr.Internal("open approval audit log", err)
	}
	return &ApprovalAuditLog{writer: w}, nil
}

// Record appends one audit entry.
func (l *ApprovalAuditLog) Record(entry ApprovalAuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Append(entry); err != nil {
		return apperr.Internal("append approval audit entry", err)
	}
	return nil
}

// Close releases the underlying file handle.
func (l *ApprovalAuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}

// ReadApprovalAudit reads the full approval audit history.
func ReadApprovalAudit(layout Layout) ([]ApprovalAuditEntry, error) {
	records, err := ReadJSONL[ApprovalAuditEntry](layout.ApprovalAuditPath())
	if err != nil {
		return nil, apperr.Internal("read approval audit log", err)
	}
	return records, nil
}
