package migration

import (
	"math"
	"sort"
	"sync"
)

// Registry holds the migration phase and its derived flags. One Registry is
// created by the application root and handed to every coordinator; there is
// no package-level instance.
//
// Coordinators call [Registry.Snapshot] once at the start of each operation
// and route the whole operation from that copy, so a concurrent SetPhase is
// observed either entirely or not at all by any single call.
//
// The surrealshift_migration_phase gauge is process-wide: every Registry
// writes the same gauge, so with more than one Registry it shows whichever
// changed last.
type Registry struct {
	mu    sync.RWMutex
	flags FlagSet
}

// NewRegistry returns a registry at phase 1.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Snapshot returns a copy of the current flags.
func (r *Registry) Snapshot() FlagSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.flags
}

// AllFlags is Snapshot under the name the admin surface uses.
func (r *Registry) AllFlags() FlagSet {
	return r.Snapshot()
}

// Phase returns the current phase number.
func (r *Registry) Phase() Phase {
	return r.Snapshot().Phase
}

// GetFlag returns a single flag: a bool, or an int for migration_phase.
func (r *Registry) GetFlag(name string) (any, error) {
	flags := r.Snapshot()
	switch name {
	case FlagDualWrite:
		return flags.DualWrite, nil
	case FlagDualRead:
		return flags.DualRead, nil
	case FlagReadFromTarget:
		return flags.ReadFromTarget, nil
	case FlagValidation:
		return flags.Validation, nil
	case FlagMigrationPhase:
		return int(flags.Phase), nil
	}
	return nil, &UnknownFlagError{Name: name}
}

// SetFlag sets one flag without consulting the phase table. Setting
// migration_phase changes only the number; the boolean flags stay as they
// are. Use SetPhase to apply a whole table row.
func (r *Registry) SetFlag(name string, value any) error {
	return r.SetFlags(map[string]any{name: value})
}

// SetFlags applies several flags as one change. Every name and value is
// checked first; if any is rejected none are applied.
func (r *Registry) SetFlags(values map[string]any) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	r.mu.Lock()
	next := r.flags
	for _, name := range names {
		if err := setFlag(&next, name, values[name]); err != nil {
			r.mu.Unlock()
			return err
		}
	}
	r.flags = next
	r.mu.Unlock()
	phaseGauge.Set(float64(next.Phase))
	return nil
}

func setFlag(flags *FlagSet, name string, value any) error {
	switch name {
	case FlagDualWrite, FlagDualRead, FlagReadFromTarget, FlagValidation:
		b, ok := value.(bool)
		if !ok {
			return &InvalidFlagValueError{Name: name, Value: value}
		}
		switch name {
		case FlagDualWrite:
			flags.DualWrite = b
		case FlagDualRead:
			flags.DualRead = b
		case FlagReadFromTarget:
			flags.ReadFromTarget = b
		case FlagValidation:
			flags.Validation = b
		}
		return nil
	case FlagMigrationPhase:
		n, ok := toInt(value)
		if !ok {
			return &InvalidFlagValueError{Name: name, Value: value}
		}
		p := Phase(n)
		if !p.Valid() {
			return &InvalidPhaseError{Phase: n}
		}
		flags.Phase = p
		return nil
	}
	return &UnknownFlagError{Name: name}
}

// SetPhase replaces every flag with the table row for p. An invalid phase
// leaves the registry untouched.
func (r *Registry) SetPhase(p Phase) error {
	flags, err := FlagsForPhase(p)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.flags = flags
	r.mu.Unlock()
	phaseGauge.Set(float64(p))
	return nil
}

// Reset restores phase 1 defaults.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.flags = phaseTable[PhaseSourceOnly]
	r.mu.Unlock()
	phaseGauge.Set(float64(PhaseSourceOnly))
}

// toInt accepts the numeric shapes a phase can arrive in, including JSON
// numbers decoded as float64.
func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case Phase:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}
