// Package main is the CLI entry point for agentd: a daemon hosting
// LLM-driven agent sessions over an HTTP/SSE boundary, with a cron/
// interval/once automation scheduler.
//
// Usage:
//
//	agentd init agentd.yaml
//	agentd serve --config agentd.yaml
//	agentd automation list
//	agentd version
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentrt/agentd/internal/automation"
	"github.com/agentrt/agentd/internal/config"
	"github.com/agentrt/agentd/internal/httpapi"
	"github.com/agentrt/agentd/internal/logging"
	"github.com/agentrt/agentd/internal/mountplan"
	"github.com/agentrt/agentd/internal/orchestrator"
	"github.com/agentrt/agentd/internal/session"
	"github.com/agentrt/agentd/internal/store"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
)

// Exit codes per spec §6: 0 clean shutdown, 2 configuration error, 70
// internal error on startup.
const (
	exitOK            = 0
	exitConfigError   = 2
	exitInternalError = 70
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		return exitConfigError
	}
	return exitInternalError
}

// configError marks an error as a configuration-load failure so main can
// distinguish spec §6's exit code 2 from a startup-time exit code 70.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agentd",
		Short:         "agentd runs LLM-driven agent sessions behind an HTTP/SSE API",
		Version:       fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(buildServeCmd(), buildVersionCmd(), buildAutomationCmd(), buildInitCmd())
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agentd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "agentd %s (commit %s)\n", version, commit)
			return nil
		},
	}
}

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agentd daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the settings YAML file")
	return cmd
}

// runServe loads settings, wires every component, and blocks until a
// SIGINT/SIGTERM triggers graceful shutdown (spec §5 "stop() awaits
// in-flight tasks with a bound").
func runServe(ctx context.Context, configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return &configError{err}
	}

	logger, closeLog, err := logging.New(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat, File: settings.LogFile})
	if err != nil {
		return &configError{fmt.Errorf("configure logging: %w", err)}
	}
	defer closeLog()

	watcher, err := config.NewWatcher(logger, func(path string) {
		logger.Info().Str("path", path).Msg("config or mount-plan file changed on disk; restart to pick up edits")
	})
	if err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	watchPaths := []string{settings.DataDir}
	if configPath != "" {
		watchPaths = append(watchPaths, configPath)
	}
	watcher.Start(watchPaths...)
	defer watcher.Stop()

	layout := store.NewLayout(settings.DataDir)
	sessionStore := store.NewSessionStore(layout)
	automationStore := store.NewAutomationStore(layout)

	approvalAudit, err := store.OpenApprovalAuditLog(layout)
	if err != nil {
		return fmt.Errorf("open approval audit log: %w", err)
	}
	defer approvalAudit.Close()

	registry := mountplan.NewRegistry()
	mountplan.RegisterBuiltins(registry, logger, approvalAudit)
	loader := mountplan.NewLoader(registry, logger)

	orchCfg := orchestrator.Config{MaxIterations: settings.MaxIterations, CompactionThreshold: settings.CompactionThreshold}
	runnerBuilder := mountplan.NewRunnerBuilder(loader, sessionStore, orchCfg, logger)

	sessionManager := session.NewManager(sessionStore, runnerBuilder, settings.SubscriberQueueSize, logger)

	fallbackPlan := defaultFallbackMountPlan()
	profiles := mountplan.NewDefaultMountPlanProvider(fallbackPlan, nil)

	scheduler := automation.NewScheduler(automationStore, sessionManager, profiles, logger)

	router := httpapi.NewRouter(sessionManager, automationStore, scheduler, registry, profiles, logger)
	scheduler.SetSink(router.Bus())

	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start automation scheduler: %w", err)
	}
	defer scheduler.Stop()

	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	server := router.NewServer(addr)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("agentd listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return <-serveErr
}

// defaultFallbackMountPlan is the profile automations use when a project
// has no explicit mount-plan override registered (spec §4.7 "the
// project's default profile and mount plan"). It mounts only the
// diagnostics-grade built-ins: a caller wanting a real LLM-backed
// automation configures a per-project override with a real provider.
func defaultFallbackMountPlan() mountplan.MountPlan {
	return mountplan.MountPlan{
		Orchestrator: mountplan.MountPoint{Kind: mountplan.MountEmbedded, Name: "default"},
		Providers: []mountplan.MountPoint{
			{Kind: mountplan.MountEmbedded, Name: "http_json"},
		},
		Tools: []mountplan.MountPoint{
			{Kind: mountplan.MountEmbedded, Name: "echo"},
			{Kind: mountplan.MountEmbedded, Name: "read_file"},
		},
		Hooks: []mountplan.MountPoint{
			{Kind: mountplan.MountEmbedded, Name: "approval", Priority: -10},
			{Kind: mountplan.MountEmbedded, Name: "audit_log"},
		},
	}
}
