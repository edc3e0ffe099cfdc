package migration

import "fmt"

// Phase is an ordinal migration stage. Phases only ever move through the
// fixed table below; there is no partial phase.
type Phase int

const (
	// PhaseSourceOnly reads and writes the source only.
	PhaseSourceOnly Phase = 1
	// PhaseDualWrite mirrors writes to the target; reads stay on the source.
	PhaseDualWrite Phase = 2
	// PhaseDualRead mirrors writes and reads both stores, validating reads.
	PhaseDualRead Phase = 3
	// PhaseReadTarget mirrors writes and serves reads from the target.
	PhaseReadTarget Phase = 4
	// PhaseTargetOnly reads and writes the target only.
	PhaseTargetOnly Phase = 5

	MinPhase = PhaseSourceOnly
	MaxPhase = PhaseTargetOnly
)

// Flag names as exposed by the admin surface.
const (
	FlagDualWrite      = "dual_write_enabled"
	FlagDualRead       = "dual_read_enabled"
	FlagReadFromTarget = "read_from_target"
	FlagValidation     = "validation_enabled"
	FlagMigrationPhase = "migration_phase"
)

// FlagNames lists every flag the registry knows, in display order.
var FlagNames = []string{
	FlagDualWrite,
	FlagDualRead,
	FlagReadFromTarget,
	FlagValidation,
	FlagMigrationPhase,
}

// FlagSet is the routing state a coordinator call works from. It is a plain
// value; copies never alias registry state.
type FlagSet struct {
	DualWrite      bool  `json:"dual_write_enabled"`
	DualRead       bool  `json:"dual_read_enabled"`
	ReadFromTarget bool  `json:"read_from_target"`
	Validation     bool  `json:"validation_enabled"`
	Phase          Phase `json:"migration_phase"`
}

var phaseTable = map[Phase]FlagSet{
	PhaseSourceOnly: {Phase: PhaseSourceOnly},
	PhaseDualWrite:  {Phase: PhaseDualWrite, DualWrite: true},
	PhaseDualRead:   {Phase: PhaseDualRead, DualWrite: true, DualRead: true, Validation: true},
	PhaseReadTarget: {Phase: PhaseReadTarget, DualWrite: true, ReadFromTarget: true},
	PhaseTargetOnly: {Phase: PhaseTargetOnly, ReadFromTarget: true},
}

// FlagsForPhase returns the table row for p.
func FlagsForPhase(p Phase) (FlagSet, error) {
	flags, ok := phaseTable[p]
	if !ok {
		return FlagSet{}, &InvalidPhaseError{Phase: int(p)}
	}
	return flags, nil
}

func (p Phase) Valid() bool {
	return p >= MinPhase && p <= MaxPhase
}

func (p Phase) String() string {
	switch p {
	case PhaseSourceOnly:
		return "source-only"
	case PhaseDualWrite:
		return "dual-write"
	case PhaseDualRead:
		return "dual-read"
	case PhaseReadTarget:
		return "read-target"
	case PhaseTargetOnly:
		return "target-only"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// TargetOnlyWrites reports the phase-5 shape: reads come from the target and
// nothing is mirrored, so writes skip the source entirely.
func (f FlagSet) TargetOnlyWrites() bool {
	return f.ReadFromTarget && !f.DualWrite
}

// Map renders the set keyed by flag name.
func (f FlagSet) Map() map[string]any {
	return map[string]any{
		FlagDualWrite:      f.DualWrite,
		FlagDualRead:       f.DualRead,
		FlagReadFromTarget: f.ReadFromTarget,
		FlagValidation:     f.Validation,
		FlagMigrationPhase: int(f.Phase),
	}
}
