// Package models defines the commerce entities that surrealshift moves from
// PostgreSQL to SurrealDB, together with the typed identifiers that let both
// stores refer to the same record.
//
// # Entities
//
//   - [User]: accounts, including sellers and administrators
//   - [Category]: a product taxonomy with optional parents
//   - [Product]: items listed by sellers, with price and stock
//   - [CartItem]: one line in a user's cart, unique per user and product
//   - [Order] and [OrderItem]: placed orders with their priced lines
//   - [Compensation]: the saga journal entry written ahead of every
//     secondary write
//
// # Identifiers
//
// Every entity uses an [ID] instantiated for its table ([UserID],
// [ProductID], ...). The value is a UUID that is stored as a uuid column by
// GORM, travels as a string in JSON, and is encoded as a CBOR tag 8 RecordID
// when sent to SurrealDB. Because the ID is generated before the primary
// write, the secondary write re-uses it and both stores address the record
// identically.
//
// # Timestamps
//
// Timestamps are assigned by the coordinators rather than by either store.
// [Now] truncates to microseconds so a value round-tripped through
// PostgreSQL compares equal to the one held by SurrealDB.
package models
