// Package coordinator holds the entity coordinators that route users,
// products, categories, cart items and orders through the dual-write and
// dual-read coordinators in pkg/migration.
//
// Each coordinator assigns identifiers and timestamps before the primary
// write so that the secondary receives an identical record, and supplies the
// attribute comparison used when both stores are read. The package also
// provides Backfill, which copies existing data from the primary to the
// secondary, and Reconciler, which settles compensation journal entries left
// pending by failed rollbacks.
package coordinator
