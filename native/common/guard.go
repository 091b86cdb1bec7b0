package common

import (
	"errors"
	"sort"
)

// ErrModulePaused is returned when a mutating operation targets a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the administrative pause switches to the native engines.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the named module is paused. A nil view or
// empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseRegistry is the owner-controlled implementation of PauseView shared by
// the daemon. The registry assumes serialized execution and carries no locking.
type PauseRegistry struct {
	paused map[string]bool
}

// NewPauseRegistry returns an empty registry with every module unpaused.
func NewPauseRegistry() *PauseRegistry {
	return &PauseRegistry{paused: make(map[string]bool)}
}

// IsPaused implements the PauseView interface.
func (r *PauseRegistry) IsPaused(module string) bool {
	if r == nil {
		return false
	}
	return r.paused[module]
}

// Pause flips the named module into the paused state.
func (r *PauseRegistry) Pause(module string) {
	if r == nil || module == "" {
		return
	}
	r.paused[module] = true
}

// Resume clears the paused state for the named module.
func (r *PauseRegistry) Resume(module string) {
	if r == nil || module == "" {
		return
	}
	delete(r.paused, module)
}

// Snapshot exports the paused module names for persistence.
func (r *PauseRegistry) Snapshot() []string {
	if r == nil {
		return nil
	}
	modules := make([]string, 0, len(r.paused))
	for module := range r.paused {
		modules = append(modules, module)
	}
	sort.Strings(modules)
	return modules
}

// Restore replaces the pause set with the snapshot contents.
func (r *PauseRegistry) Restore(modules []string) {
	if r == nil {
		return
	}
	r.paused = make(map[string]bool, len(modules))
	for _, module := range modules {
		if module != "" {
			r.paused[module] = true
		}
	}
}
