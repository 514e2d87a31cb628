package httpapi

import "net/http"

// handleListModules implements spec §4.9's "Module discovery": the names
// of every provider/tool/hook/orchestrator/context-manager factory the
// daemon knows how to mount.
func (rt *Router) handleListModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModuleDiscoveryResponse{
		Providers:       rt.registry.ProviderNames(),
		Tools:           rt.registry.ToolNames(),
		Hooks:           rt.registry.HookNames(),
		Orchestrators:   rt.registry.OrchestratorNames(),
		ContextManagers: rt.registry.ContextManagerNames(),
	})
}

// handleListProfiles implements spec §4.9's "Profile discovery".
func (rt *Router) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProfileDiscoveryResponse{ProfileIDs: rt.profiles.ProfileIDs()})
}
