// Package migration coordinates reads and writes across two stores while the
// system of record moves from one to the other.
//
// # Phases
//
// A [Registry] holds the current [Phase] and the [FlagSet] derived from it:
//
//	Phase  dual_write  dual_read  read_from_target  validation
//	1      false       false      false             false
//	2      true        false      false             false
//	3      true        true       false             true
//	4      true        false      true              false
//	5      false       false      true              false
//
// [Registry.SetPhase] applies a whole row; [Registry.SetFlag] changes a
// single flag for targeted experiments and does not consult the table.
// Every coordinator call takes one [Registry.Snapshot] at entry and routes
// the entire call from it.
//
// # Writes
//
// A [DualWriter] receives a [WriteOperation] of four closures. In the
// phase-5 shape only TargetOnly runs. Otherwise Primary runs, and when dual
// writes are on Secondary receives the primary's result. A secondary failure
// triggers Rollback exactly once and returns a [SecondaryWriteError] that
// wraps the secondary's error; a failing rollback is attached to it and
// logged, but never replaces it.
//
// When a [Journal] is configured, a pending [github.com/surrealdb/surrealshift/pkg/models.Compensation]
// is recorded between the primary and the secondary write and resolved when
// the pair settles. Entries left pending describe primary writes that may
// still need undoing after a failed rollback or a crash.
//
// # Reads
//
// A [DualReader] receives a [ReadOperation] of two closures. Phases 1 and 2
// read the primary, phases 4 and 5 the secondary, and phase 3 reads both
// concurrently. A failure on either side fails the call; the other side is
// neither cancelled nor awaited for its result. With validation on, the two
// results are compared by the entity's compare hook and summarized in a
// [ValidationReport].
//
// Divergence is reported one way only: Execute returns the populated
// [ReadResult], whose Data is the primary's value, together with a
// [ValidationFailedError] carrying the report and an actionable message.
//
// # Correlation
//
// Each call runs under one correlation ID, taken from the context when
// [WithCorrelationID] put one there and generated otherwise. Every log line,
// report, journal entry and error of the call carries it.
package migration
