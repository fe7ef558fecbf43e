// Package state persists the active- and last-profile pointers in one of
// two durable buckets: global, or scoped to the current workspace.
package state

import (
	"github.com/pysugar/codex-profiles/internal/config"
	"github.com/pysugar/codex-profiles/internal/storage"
	"go.uber.org/zap"
)

const (
	keyActive = "activeProfile"
	keyLast   = "lastProfile"
)

// Earlier releases namespaced the pointer keys; they are migrated into
// the bare key names on first read, then cleared.
var legacyKeys = map[string][]string{
	keyActive: {"codexSwitcher.activeProfile", "codexSwitcher.active"},
	keyLast:   {"codexSwitcher.lastProfile", "codexSwitcher.last"},
}

// Pointers reads and writes the active/last profile ids. All failures
// degrade to "unset"; pointer state must never crash a caller.
type Pointers struct {
	states *storage.States
	bucket string
	log    *zap.Logger
}

// NewPointers selects the bucket from the configured scope. workspaceDir
// is only consulted for the workspace scope.
func NewPointers(states *storage.States, scope, workspaceDir string, log *zap.Logger) *Pointers {
	bucket := storage.GlobalBucket
	if scope == config.ScopeWorkspace {
		bucket = storage.WorkspaceBucket(workspaceDir)
	}
	return &Pointers{states: states, bucket: bucket, log: log}
}

// Active returns the active profile id, or empty when unset. The id may
// reference a deleted profile; callers validate against the registry.
func (p *Pointers) Active() string { return p.get(keyActive) }

// SetActive updates the active pointer; an empty id clears it.
func (p *Pointers) SetActive(id string) { p.set(keyActive, id) }

// Last returns the previously-active profile id, or empty when unset.
func (p *Pointers) Last() string { return p.get(keyLast) }

// SetLast updates the last-profile pointer; an empty id clears it.
func (p *Pointers) SetLast(id string) { p.set(keyLast, id) }

// ClearProfile drops any pointer referencing the given profile id. Called
// from the profile delete cascade and from stale-pointer hygiene.
func (p *Pointers) ClearProfile(id string) {
	if id == "" {
		return
	}
	if p.get(keyActive) == id {
		p.set(keyActive, "")
	}
	if p.get(keyLast) == id {
		p.set(keyLast, "")
	}
}

func (p *Pointers) get(key string) string {
	value, found, err := p.states.Get(p.bucket, key)
	if err != nil {
		p.log.Warn("failed to read pointer state", zap.String("key", key), zap.Error(err))
		return ""
	}
	if found {
		return value
	}

	// Fallback chain over the legacy key names, migrating on first read.
	for _, legacy := range legacyKeys[key] {
		value, found, err = p.states.Get(p.bucket, legacy)
		if err != nil || !found {
			continue
		}
		if err := p.states.Set(p.bucket, key, value); err == nil {
			if err := p.states.Delete(p.bucket, legacy); err != nil {
				p.log.Warn("failed to clear legacy pointer key", zap.String("key", legacy), zap.Error(err))
			}
		}
		return value
	}
	return ""
}

func (p *Pointers) set(key, id string) {
	var err error
	if id == "" {
		err = p.states.Delete(p.bucket, key)
	} else {
		err = p.states.Set(p.bucket, key, id)
	}
	if err != nil {
		p.log.Warn("failed to write pointer state", zap.String("key", key), zap.Error(err))
	}
}
