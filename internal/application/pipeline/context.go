// Package pipeline runs the progressive identifier-resolution pipeline: an
// ordered list of stages, each applied only to the source identifiers every
// earlier stage left unmapped, with per-stage statistics and a single Result
// handed to reporting collaborators.
package pipeline

import (
	"sync"
	"time"

	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// ─────────────────────────────────────────────────────────────────────────────
// Context contract
// ─────────────────────────────────────────────────────────────────────────────

// Context is the get/set capability stages rely on.  PipelineContext is the
// only implementation.
type Context interface {
	Get(key string, def interface{}) interface{}
	Set(key string, value interface{})
}

// Well-known keys.  Stages may add their own.
const (
	KeyRunID       = "run_id"
	KeyMatchMode   = "match_mode"
	KeyTarget      = "target"
	KeySourceCount = "source_count"
	KeyStartedAt   = "started_at"
	KeyWarnings    = "warnings"
	KeyTransitions = "transitions"
)

// PipelineContext is the per-run state shared with stages.  The orchestrator
// creates one at run start and drops it when the run ends.  Safe for
// concurrent use.
type PipelineContext struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewPipelineContext returns a context seeded with the run id, match mode and
// full target set.
func NewPipelineContext(runID string, mode mapping.MatchMode, target []mapping.Identifier, sourceCount int) *PipelineContext {
	pc := &PipelineContext{values: make(map[string]interface{})}
	pc.values[KeyRunID] = runID
	pc.values[KeyMatchMode] = mode
	pc.values[KeyTarget] = append([]mapping.Identifier(nil), target...)
	pc.values[KeySourceCount] = sourceCount
	pc.values[KeyStartedAt] = time.Now()
	return pc
}

// Get returns the value stored under key, or def.
func (pc *PipelineContext) Get(key string, def interface{}) interface{} {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if v, ok := pc.values[key]; ok {
		return v
	}
	return def
}

// Set stores value under key.
func (pc *PipelineContext) Set(key string, value interface{}) {
	pc.mu.Lock()
	pc.values[key] = value
	pc.mu.Unlock()
}

// ── Typed accessors ──────────────────────────────────────────────────────────

// RunID returns the run identifier.
func (pc *PipelineContext) RunID() string {
	v, _ := pc.Get(KeyRunID, "").(string)
	return v
}

// MatchMode returns the run's match mode.
func (pc *PipelineContext) MatchMode() mapping.MatchMode {
	v, _ := pc.Get(KeyMatchMode, mapping.MatchModeOneToOne).(mapping.MatchMode)
	return v
}

// Target returns a copy of the full target set.
func (pc *PipelineContext) Target() []mapping.Identifier {
	v, _ := pc.Get(KeyTarget, []mapping.Identifier(nil)).([]mapping.Identifier)
	return append([]mapping.Identifier(nil), v...)
}

// SourceCount returns the number of source identifiers entering stage 1.
func (pc *PipelineContext) SourceCount() int {
	v, _ := pc.Get(KeySourceCount, 0).(int)
	return v
}

// StartedAt returns when the run began.
func (pc *PipelineContext) StartedAt() time.Time {
	v, _ := pc.Get(KeyStartedAt, time.Time{}).(time.Time)
	return v
}

// String returns the string stored under key, or def.
func (pc *PipelineContext) String(key, def string) string {
	if v, ok := pc.Get(key, def).(string); ok {
		return v
	}
	return def
}

// Int returns the int stored under key, or def.
func (pc *PipelineContext) Int(key string, def int) int {
	if v, ok := pc.Get(key, def).(int); ok {
		return v
	}
	return def
}

// AddWarning appends a non-fatal message for the run.
func (pc *PipelineContext) AddWarning(msg string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	w, _ := pc.values[KeyWarnings].([]string)
	pc.values[KeyWarnings] = append(w, msg)
}

// Warnings returns a copy of the recorded warnings.
func (pc *PipelineContext) Warnings() []string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	w, _ := pc.values[KeyWarnings].([]string)
	return append([]string(nil), w...)
}

func (pc *PipelineContext) recordTransition(s mapping.State) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	t, _ := pc.values[KeyTransitions].([]mapping.State)
	pc.values[KeyTransitions] = append(t, s)
}

// Transitions returns every state the run has entered, in order.
func (pc *PipelineContext) Transitions() []mapping.State {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	t, _ := pc.values[KeyTransitions].([]mapping.State)
	return append([]mapping.State(nil), t...)
}

var _ Context = (*PipelineContext)(nil)

//Personal.AI order the ending
