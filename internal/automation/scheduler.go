// Package automation implements the automation scheduler (spec component
// C7): maintains the set of enabled automations, fires their triggers at
// the right time, starts a transient session via C6, and records the
// outcome.
package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/agentrt/agentd/internal/apperr"
	"github.com/agentrt/agentd/internal/session"
	"github.com/agentrt/agentd/internal/store"
)

// hardTimeout bounds one automation firing so a stuck tool or provider call
// cannot wedge the scheduler forever, mirroring the teacher's cron
// scheduler's hard-deadline goroutine pattern.
const hardTimeout = 30 * time.Minute

// GlobalSink receives daemon-wide notifications of automation firings, for
// C9's global event stream (spec §4.9 "Subscribe to a global event
// stream"). Defined locally for the same reason as DefaultMountPlanProvider:
// automation must not import the HTTP layer that consumes this.
type GlobalSink interface {
	Publish(eventName string, data map[string]any)
}

// DefaultMountPlanProvider resolves a project's default profile and mount
// plan for transient automation sessions. Defined locally (rather than
// importing internal/mountplan) so automation stays free of a cycle with
// the mount-plan loader, which itself may need to enumerate automations.
type DefaultMountPlanProvider interface {
	DefaultMountPlan(ctx context.Context, projectID string) (profileID string, mountPlan any, err error)
}

// scheduledEntry is the live registration for one automation, covering all
// three trigger kinds under a single key so schedule/unschedule stays
// idempotent regardless of trigger type.
type scheduledEntry struct {
	automationID string
	cronEntryID  cron.EntryID
	hasCronEntry bool
	timer        *time.Timer
}

// Scheduler wraps robfig/cron/v3 for cron-type triggers (grounded on the
// teacher's internal/cron/scheduler.go) and handles interval/once triggers
// manually via time.Timer, since robfig/cron only parses cron expressions.
type Scheduler struct {
	mu      sync.Mutex
	running bool

	cron    *cron.Cron
	entries map[string]*scheduledEntry

	store    *store.AutomationStore
	sessions *session.Manager
	plans    DefaultMountPlanProvider
	sink     GlobalSink
	logger   zerolog.Logger

	wg sync.WaitGroup
	// executing prevents overlapping firings of the same automation,
	// mirroring the teacher's sync.Map "executing" tracker.
	executing sync.Map
}

// NewScheduler constructs a Scheduler. It does not start firing until
// Start is called.
func NewScheduler(automations *store.AutomationStore, sessions *session.Manager, plans DefaultMountPlanProvider, logger zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		entries:  make(map[string]*scheduledEntry),
		store:    automations,
		sessions: sessions,
		plans:    plans,
		logger:   logger,
	}
}

// Start is idempotent: loads every enabled automation from C10 and
// registers each with its trigger, then enters "running" as a single
// transition (spec §4.7 "start()").
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	all, err := s.store.ListAll()
	if err != nil {
		return apperr.Internal("list automations for scheduler start", err)
	}
	for _, a := range all {
		if !a.Enabled {
			continue
		}
		if err := s.registerLocked(a); err != nil {
			s.logger.Error().Err(err).Str("automation_id", a.ID).Msg("failed to register automation")
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Int("registered", len(s.entries)).Msg("automation scheduler started")
	return nil
}

// Stop cancels all pending fires and flushes in-flight executions to
// completion on a best-effort basis (spec §4.7 "stop()").
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cronCtx := s.cron.Stop()
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.entries = make(map[string]*scheduledEntry)
	s.running = false
	s.mu.Unlock()

	<-cronCtx.Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(hardTimeout):
		s.logger.Warn().Msg("automation scheduler stop timed out waiting for in-flight firings")
	}
	s.logger.Info().Msg("automation scheduler stopped")
}

// Schedule (re)registers an automation keyed by its ID: enabled
// automations are registered or replaced, disabled ones are unregistered.
// The key guarantees an update replaces rather than duplicates (spec
// §4.7 "schedule(automation)").
func (s *Scheduler) Schedule(a store.Automation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unregisterLocked(a.ID)
	if !a.Enabled || !s.running {
		return nil
	}
	return s.registerLocked(a)
}

// Unschedule removes an automation's registration by key; a missing key
// is not an error (spec §4.7 "unschedule(id)").
func (s *Scheduler) Unschedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregisterLocked(id)
}

// registerLocked adds a's trigger to the appropriate mechanism. Caller
// must hold s.mu.
func (s *Scheduler) registerLocked(a store.Automation) error {
	switch a.Schedule.Type {
	case store.ScheduleCron:
		sched, err := parseCronSchedule(a.Schedule.Value)
		if err != nil {
			return err
		}
		id := a.ID
		entryID := s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id) }))
		s.entries[a.ID] = &scheduledEntry{automationID: a.ID, cronEntryID: entryID, hasCronEntry: true}
		return nil

	case store.ScheduleInterval:
		d, err := parseInterval(a.Schedule.Value)
		if err != nil {
			return err
		}
		id := a.ID
		e := &scheduledEntry{automationID: a.ID}
		e.timer = time.AfterFunc(d, func() { s.fireAndReschedule(id, d) })
		s.entries[a.ID] = e
		return nil

	case store.ScheduleOnce:
		at, err := parseOnce(a.Schedule.Value)
		if err != nil {
			return err
		}
		delay := time.Until(at)
		if delay < 0 {
			// Already past: fire immediately on this start(), then
			// self-deregister (spec §4.7 "Cron/interval semantics").
			delay = 0
		}
		id := a.ID
		e := &scheduledEntry{automationID: a.ID}
		e.timer = time.AfterFunc(delay, func() {
			s.fire(id)
			s.Unschedule(id)
		})
		s.entries[a.ID] = e
		return nil

	default:
		return apperr.Validation("unknown schedule type %q", a.Schedule.Type)
	}
}

func (s *Scheduler) unregisterLocked(id string) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	if e.hasCronEntry {
		s.cron.Remove(e.cronEntryID)
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.entries, id)
}

// fireAndReschedule re-arms an interval trigger after each fire, since
// interval fires "every N from scheduler start or from last fire,
// whichever is later" (spec §4.7 "Triggers").
func (s *Scheduler) fireAndReschedule(id string, d time.Duration) {
	s.fire(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return // unscheduled while firing
	}
	e := &scheduledEntry{automationID: id}
	e.timer = time.AfterFunc(d, func() { s.fireAndReschedule(id, d) })
	s.entries[id] = e
}

// fire executes one automation firing end to end (spec §4.7 "Firing"):
// create a transient session, run one turn, record the outcome. Every
// failure path, including being unable to start the session at all, still
// produces a failed ExecutionRecord.
func (s *Scheduler) fire(automationID string) {
	if _, loaded := s.executing.LoadOrStore(automationID, time.Now()); loaded {
		s.logger.Warn().Str("automation_id", automationID).Msg("skipping overlapping automation firing")
		return
	}
	defer s.executing.Delete(automationID)

	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), hardTimeout)
	defer cancel()

	record := store.ExecutionRecord{
		ID:           "exec_" + uuid.NewString(),
		AutomationID: automationID,
		ExecutedAt:   time.Now(),
	}

	a, err := s.store.Load(automationID)
	if err != nil {
		record.Status = store.ExecutionFailed
		record.Error = fmt.Sprintf("load automation: %v", err)
		s.finishFiring(automationID, record)
		return
	}
	if !a.Enabled {
		return
	}

	profileID, mountPlan, err := s.plans.DefaultMountPlan(ctx, a.ProjectID)
	if err != nil {
		record.Status = store.ExecutionFailed
		record.Error = fmt.Sprintf("resolve default mount plan: %v", err)
		s.finishFiring(automationID, record)
		return
	}

	sessionID := "auto_" + uuid.NewString()
	record.SessionID = sessionID
	if _, err := s.sessions.CreateSessionWithID(ctx, sessionID, profileID, mountPlan); err != nil {
		record.Status = store.ExecutionFailed
		record.Error = fmt.Sprintf("create session: %v", err)
		s.finishFiring(automationID, record)
		return
	}

	result, err := s.sessions.RunTurnSync(ctx, sessionID, a.Message)
	if err != nil {
		record.Status = store.ExecutionFailed
		record.Error = err.Error()
		s.finishFiring(automationID, record)
		return
	}
	if result.Status != "completed" {
		record.Status = store.ExecutionFailed
		record.Error = fmt.Sprintf("turn ended with status %q", result.Status)
		s.finishFiring(automationID, record)
		return
	}

	record.Status = store.ExecutionSuccess
	s.finishFiring(automationID, record)
}

// finishFiring appends the ExecutionRecord and updates the automation's
// last_execution, regardless of outcome (spec §4.7 point 3 and 4).
func (s *Scheduler) finishFiring(automationID string, record store.ExecutionRecord) {
	if err := s.store.AppendExecution(automationID, record); err != nil {
		s.logger.Error().Err(err).Str("automation_id", automationID).Msg("failed to append execution record")
	}

	a, err := s.store.Load(automationID)
	if err != nil {
		return
	}
	now := record.ExecutedAt
	a.LastExecution = &now
	if err := s.store.Save(a); err != nil {
		s.logger.Error().Err(err).Str("automation_id", automationID).Msg("failed to update automation last_execution")
	}

	if record.Status == store.ExecutionSuccess {
		s.logger.Info().Str("automation_id", automationID).Str("session_id", record.SessionID).Msg("automation fired")
	} else {
		s.logger.Error().Str("automation_id", automationID).Str("error", record.Error).Msg("automation firing failed")
	}

	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		eventName := "automation:fired"
		if record.Status != store.ExecutionSuccess {
			eventName = "automation:failed"
		}
		sink.Publish(eventName, map[string]any{
			"automation_id": automationID,
			"execution_id":  record.ID,
			"session_id":    record.SessionID,
			"status":        string(record.Status),
			"error":         record.Error,
		})
	}
}

// SetSink wires a GlobalSink that receives "automation:fired" /
// "automation:failed" notifications for every completed firing. Optional;
// a nil sink (the default) means no daemon-wide event is published.
func (s *Scheduler) SetSink(sink GlobalSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Entries returns the number of currently registered triggers, for tests
// and diagnostics.
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
