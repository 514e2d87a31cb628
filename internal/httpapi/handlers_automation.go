package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/agentrt/agentd/internal/automation"
	"github.com/agentrt/agentd/internal/store"
)

func (rt *Router) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	ids, err := rt.automations.ListProject(projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]AutomationResponse, 0, len(ids))
	for _, id := range ids {
		a, err := rt.automations.Load(id)
		if err != nil {
			continue
		}
		out = append(out, automationResponseFrom(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	var req AutomationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyValidationError(w, err.Error())
		return
	}
	if req.Name == "" {
		writeFieldValidationErrors(w, []ValidationError{{Loc: "name", Msg: "name is required", Type: "missing"}})
		return
	}
	if req.Message == "" {
		writeFieldValidationErrors(w, []ValidationError{{Loc: "message", Msg: "message is required", Type: "missing"}})
		return
	}
	if err := automation.ValidateSchedule(req.Schedule); err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	a := store.Automation{
		ID:        "auto_" + uuid.NewString(),
		ProjectID: projectID,
		Name:      req.Name,
		Message:   req.Message,
		Schedule:  req.Schedule,
		Enabled:   req.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rt.automations.Save(a); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.scheduler.Schedule(a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, automationResponseFrom(a))
}

func (rt *Router) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := rt.automations.Load(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, automationResponseFrom(a))
}

func (rt *Router) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := rt.automations.Load(id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req AutomationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyValidationError(w, err.Error())
		return
	}
	if req.Name == "" {
		writeFieldValidationErrors(w, []ValidationError{{Loc: "name", Msg: "name is required", Type: "missing"}})
		return
	}
	if req.Message == "" {
		writeFieldValidationErrors(w, []ValidationError{{Loc: "message", Msg: "message is required", Type: "missing"}})
		return
	}
	if err := automation.ValidateSchedule(req.Schedule); err != nil {
		writeError(w, err)
		return
	}

	existing.Name = req.Name
	existing.Message = req.Message
	existing.Schedule = req.Schedule
	existing.Enabled = req.Enabled
	existing.UpdatedAt = time.Now()

	if err := rt.automations.Save(existing); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.scheduler.Schedule(existing); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, automationResponseFrom(existing))
}

func (rt *Router) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := rt.automations.Load(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rt.automations.Delete(a.ProjectID, id); err != nil {
		writeError(w, err)
		return
	}
	rt.scheduler.Unschedule(id)
	writeJSON(w, http.StatusNoContent, nil)
}

// handleToggleAutomation flips Enabled and re-registers (or unregisters)
// the automation's trigger accordingly.
func (rt *Router) handleToggleAutomation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := rt.automations.Load(id)
	if err != nil {
		writeError(w, err)
		return
	}
	a.Enabled = !a.Enabled
	a.UpdatedAt = time.Now()
	if err := rt.automations.Save(a); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.scheduler.Schedule(a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, automationResponseFrom(a))
}

func (rt *Router) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := rt.automations.Load(id); err != nil {
		writeError(w, err)
		return
	}
	records, err := rt.automations.ListExecutions(id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ExecutionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, executionResponseFrom(rec))
	}
	writeJSON(w, http.StatusOK, out)
}
