// Package httpapi implements the HTTP/SSE boundary (spec component C9): a
// REST surface plus text/event-stream encoders bridging HTTP clients to
// the session manager (C6) and automation scheduler (C7).
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/agentrt/agentd/internal/automation"
	"github.com/agentrt/agentd/internal/mountplan"
	"github.com/agentrt/agentd/internal/session"
	"github.com/agentrt/agentd/internal/store"
)

// Router wires the daemon's HTTP surface. Its dependencies mirror the
// teacher's v1.Router: a plain struct holding each collaborator, built
// once at startup by cmd/agentd.
type Router struct {
	sessions    *session.Manager
	automations *store.AutomationStore
	scheduler   *automation.Scheduler
	registry    *mountplan.Registry
	profiles    *mountplan.DefaultMountPlanProvider
	bus         *globalBroker
	logger      zerolog.Logger
}

// NewRouter constructs a Router. bus is created internally; wire it to the
// scheduler with scheduler.SetSink(router.Bus()) so automation firings
// reach the global event stream.
func NewRouter(sessions *session.Manager, automations *store.AutomationStore, scheduler *automation.Scheduler, registry *mountplan.Registry, profiles *mountplan.DefaultMountPlanProvider, logger zerolog.Logger) *Router {
	return &Router{
		sessions:    sessions,
		automations: automations,
		scheduler:   scheduler,
		registry:    registry,
		profiles:    profiles,
		bus:         newGlobalBroker(0),
		logger:      logger,
	}
}

// Bus returns the router's daemon-wide event broker, which implements
// automation.GlobalSink.
func (rt *Router) Bus() automation.GlobalSink { return rt.bus }

// NewServer builds a mux.Router with the full middleware chain (Recovery ->
// Logging -> CORS -> Version -> RateLimit) and every route registered, and wraps it in
// an *http.Server configured for long-lived SSE connections (spec §4.9;
// grounded on the teacher's gateway.Server "WriteTimeout: 0" for SSE).
func (rt *Router) NewServer(addr string) *http.Server {
	router := mux.NewRouter()
	rt.RegisterRoutes(router)

	limiter := newRateLimiter(defaultRateLimiterConfig())
	handler := recovery(rt.logger)(
		requestLogging(rt.logger)(
			cors(
				version(defaultVersionConfig())(
					limiter.middleware(router),
				),
			),
		),
	)

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
}

// RegisterRoutes attaches every C9 route to router.
func (rt *Router) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/sessions", rt.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions", rt.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", rt.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/messages", rt.handleAppendMessage).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/execute", rt.handleExecute).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/send", rt.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/transcript", rt.handleGetTranscript).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/stream", rt.handleSessionStream).Methods(http.MethodGet)

	api.HandleFunc("/events", rt.handleGlobalStream).Methods(http.MethodGet)

	api.HandleFunc("/projects/{projectId}/automations", rt.handleListAutomations).Methods(http.MethodGet)
	api.HandleFunc("/projects/{projectId}/automations", rt.handleCreateAutomation).Methods(http.MethodPost)
	api.HandleFunc("/automations/{id}", rt.handleGetAutomation).Methods(http.MethodGet)
	api.HandleFunc("/automations/{id}", rt.handleUpdateAutomation).Methods(http.MethodPut)
	api.HandleFunc("/automations/{id}", rt.handleDeleteAutomation).Methods(http.MethodDelete)
	api.HandleFunc("/automations/{id}/toggle", rt.handleToggleAutomation).Methods(http.MethodPost)
	api.HandleFunc("/automations/{id}/executions", rt.handleListExecutions).Methods(http.MethodGet)

	api.HandleFunc("/modules", rt.handleListModules).Methods(http.MethodGet)
	api.HandleFunc("/profiles", rt.handleListProfiles).Methods(http.MethodGet)
}
