// Package mountplan implements the mount-plan loader (spec component C8):
// validates a session's mount plan and instantiates the module coordinator
// (C2) and its providers, tools, and hooks (C2-C4) from it.
package mountplan

import (
	"encoding/json"

	"github.com/Masterminds/semver/v3"

	"github.com/agentrt/agentd/internal/apperr"
)

// SupportedMountPlanFormat is the semver constraint this loader accepts
// for MountPlan.FormatVersion (mount_plans.py's "Format versioning for
// backwards compatibility"). A plan persisted by a future, incompatible
// major version is rejected at validation rather than mounted partially.
const SupportedMountPlanFormat = "^1.0.0"

// MountKind discriminates an embedded module definition (its config is
// carried inline in the plan) from a referenced one (loaded from a cached
// source path), per spec §4.8 "discriminated mount points".
type MountKind string

const (
	MountEmbedded   MountKind = "embedded"
	MountReferenced MountKind = "referenced"
)

// MountPoint is one module slot in a MountPlan: a factory name to resolve
// against the Loader's registry, plus the config to mount it with.
type MountPoint struct {
	Kind       MountKind       `json:"kind"`
	Name       string          `json:"name"`
	Priority   int             `json:"priority,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
	SourcePath string          `json:"source_path,omitempty"`

	// Version is the referenced module's own semver, read from its cached
	// manifest/metadata (mount_plans.py's module metadata "version" key).
	// MinVersion, if set, is the plan's declared minimum acceptable
	// version for this module; Validate rejects a mount point whose
	// Version does not satisfy MinVersion, the same embedded-vs-local
	// comparison the teacher's skill updater does for builtin skills.
	Version    string `json:"version,omitempty"`
	MinVersion string `json:"min_version,omitempty"`
}

// MountPlan is the validated, immutable structure a session is created
// from (spec §4.8 "Contract"). Single-valued slots (orchestrator, context
// manager) get exactly one MountPoint; the rest are ordered lists.
type MountPlan struct {
	// FormatVersion is a semver string identifying this plan's on-disk
	// shape (mount_plans.py's format_version); empty is treated as
	// "1.0.0" for plans persisted before this field existed.
	FormatVersion  string       `json:"format_version,omitempty"`
	Orchestrator   MountPoint   `json:"orchestrator"`
	ContextManager *MountPoint  `json:"context_manager,omitempty"`
	Providers      []MountPoint `json:"providers"`
	Tools          []MountPoint `json:"tools"`
	Hooks          []MountPoint `json:"hooks"`
	Contexts       []MountPoint `json:"contexts,omitempty"`
	Agents         []MountPoint `json:"agents,omitempty"`
}

// Validate checks structural invariants a malformed plan would violate:
// a resolvable orchestrator slot, non-empty module names, and a known
// mount kind on every mount point (spec §4.8 "Invariants" — mount plans
// are immutable, so validation happens once, at creation time).
func (p MountPlan) Validate() error {
	if p.Orchestrator.Name == "" {
		return apperr.Validation("mount plan: orchestrator slot must name a module")
	}
	if err := checkFormatVersion(p.FormatVersion); err != nil {
		return err
	}
	all := append([]MountPoint{p.Orchestrator}, p.Providers...)
	all = append(all, p.Tools...)
	all = append(all, p.Hooks...)
	all = append(all, p.Contexts...)
	all = append(all, p.Agents...)
	if p.ContextManager != nil {
		all = append(all, *p.ContextManager)
	}
	for _, mp := range all {
		if mp.Name == "" {
			return apperr.Validation("mount plan: every mount point must name a module")
		}
		switch mp.Kind {
		case MountEmbedded, MountReferenced:
		default:
			return apperr.Validation("mount plan: module %q has unknown kind %q", mp.Name, mp.Kind)
		}
		if mp.Kind == MountReferenced && mp.SourcePath == "" {
			return apperr.Validation("mount plan: referenced module %q must set source_path", mp.Name)
		}
		if err := checkModuleVersion(mp); err != nil {
			return err
		}
	}
	if len(p.Providers) == 0 {
		return apperr.Validation("mount plan: at least one provider must be mounted")
	}
	return nil
}

// checkFormatVersion rejects a plan whose declared format_version falls
// outside SupportedMountPlanFormat. An empty FormatVersion is legacy data
// and always accepted.
func checkFormatVersion(raw string) error {
	if raw == "" {
		return nil
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return apperr.Validation("mount plan: invalid format_version %q: %v", raw, err)
	}
	constraint, err := semver.NewConstraint(SupportedMountPlanFormat)
	if err != nil {
		return apperr.Internal("parse mount plan format constraint", err)
	}
	if !constraint.Check(v) {
		return apperr.Validation("mount plan: format_version %q is not compatible with supported range %q", raw, SupportedMountPlanFormat)
	}
	return nil
}

// checkModuleVersion rejects a mount point whose module Version is older
// than its own declared MinVersion, mirroring the teacher's
// internal/skills/updater.go VersionChecker.compareVersions (embed vs.
// local semver.GreaterThan) applied to a mounted module's own
// minimum-version declaration instead of a builtin skill's embed copy.
func checkModuleVersion(mp MountPoint) error {
	if mp.Version == "" || mp.MinVersion == "" {
		return nil
	}
	have, err := semver.NewVersion(mp.Version)
	if err != nil {
		return apperr.Validation("mount plan: module %q has invalid version %q: %v", mp.Name, mp.Version, err)
	}
	want, err := semver.NewVersion(mp.MinVersion)
	if err != nil {
		return apperr.Validation("mount plan: module %q has invalid min_version %q: %v", mp.Name, mp.MinVersion, err)
	}
	if have.LessThan(want) {
		return apperr.Validation("mount plan: module %q version %s is older than required minimum %s", mp.Name, mp.Version, mp.MinVersion)
	}
	return nil
}
