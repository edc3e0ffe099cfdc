// Package surrealshift is the application around the migration coordinators:
// configuration, store and journal wiring, the command line, and the HTTP
// surface that serves entity routes and the phase control endpoints.
//
// # Commands
//
//	surrealshift run          # serve HTTP, sweep the journal in the background
//	surrealshift migrate      # create schemas in both stores
//	surrealshift backfill     # copy existing primary data to the secondary
//	surrealshift reconcile    # settle pending compensations once
//	surrealshift phase [n]    # print the flag table
//
// # Configuration
//
// Settings are read from defaults, then an optional YAML file given with
// --config, then the environment, then command-line flags:
//
//	POSTGRES_DSN          PostgreSQL connection string
//	SURREALDB_URL         SurrealDB WebSocket URL (default ws://localhost:8000/rpc)
//	SURREALDB_NS          SurrealDB namespace (default surrealshift)
//	SURREALDB_DB          SurrealDB database (default surrealshift)
//	SURREALDB_USER        SurrealDB username (default root)
//	SURREALDB_PASS        SurrealDB password (default root)
//	SURREALSHIFT_PHASE    initial migration phase, 1-5 (default 1)
//	SURREALSHIFT_JOURNAL  compensation journal: memory, bolt or postgres
//
// # Migration phases
//
//  1. source only: PostgreSQL serves everything
//  2. dual write: writes mirrored to SurrealDB, reads from PostgreSQL
//  3. dual read: writes mirrored, reads from both and compared
//  4. read target: writes mirrored, reads from SurrealDB
//  5. target only: SurrealDB serves everything
//
// The phase is changed at runtime through POST /api/admin/phase.
package surrealshift
