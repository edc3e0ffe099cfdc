// Package store defines the repository contracts that every surrealshift
// backend implements.
//
// A [Store] is the union of one repository per entity ([UserStore],
// [CategoryStore], [ProductStore], [CartStore], [OrderStore]) plus schema
// migration and shutdown. Three implementations exist:
//
//   - [github.com/surrealdb/surrealshift/pkg/store/postgres.PostgresStore]: the
//     relational source of record, built on GORM
//   - [github.com/surrealdb/surrealshift/pkg/store/surrealdb.SurrealStore]: the
//     document target, built on the SurrealDB Go SDK
//   - [github.com/surrealdb/surrealshift/pkg/store/memory.Store]: an in-process
//     store with fault injection for tests and local runs
//
// The coordinators in [github.com/surrealdb/surrealshift/pkg/coordinator] never
// know which implementation sits on which side; they only see two Stores.
//
// # Conventions
//
// Get methods return (nil, nil) when the record does not exist, so a dual read
// can tell "missing on one side" apart from "the store failed". Writes that
// address a missing record return [ErrNotFound]; creates that collide return
// [ErrConflict]. Implementations never assign IDs or timestamps on records
// that already carry them, which is what lets the secondary write mirror the
// primary exactly.
package store
