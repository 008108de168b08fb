// Package dbmigration applies and reverses ordered, versioned SQL changes
// ("migrations") against a PostgreSQL database using database/sql.
//
// Migrations are grouped: every group is an independent stream of versions,
// so several services can keep their schemas in one database. Each applied
// version is recorded in a ledger table inside the target database together
// with the rollback SQL captured at apply time, which is what Rollback
// replays.
//
// Basic usage involves loading a ChangeSet with LoadDir or LoadFS, creating a
// Migrator via NewMigrator(), and passing a *sql.DB (or a dedicated *sql.Conn)
// to its Migrate method:
//
//	cs, err := dbmigration.LoadFS("default", migrationsFS, "migrations")
//	m := dbmigration.NewMigrator(dbmigration.WithLogger(logger))
//	applied, err := m.Migrate(ctx, db, cs, dbmigration.All())
//
// Files follow the <version>__<name>.sql convention, with an optional
// <version>__<name>__down.sql companion holding the rollback script.
package dbmigration
