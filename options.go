package dbmigration

import "log/slog"

// Option supports option chaining when creating a Migrator.
// An Option is a function which takes a Migrator and
// returns a Migrator with an Option modified.
type Option func(m Migrator) Migrator

// WithTableName is an option which customizes the name of the ledger
// table. It can be called with either 1 or 2 string arguments. If
// called with 2 arguments, the first argument is assumed to be a schema
// qualifier (for example, WithTableName("public", "db_migrations") would
// assign the table named "db_migrations" in the default "public" schema)
func WithTableName(names ...string) Option {
	return func(m Migrator) Migrator {
		switch len(names) {
		case 0:
			// No-op if no customization was provided
		case 1:
			m.TableName = names[0]
		default:
			m.SchemaName = names[0]
			m.TableName = names[1]
		}
		return m
	}
}

// WithLogger builds an Option which will set the supplied Logger on a
// Migrator. By default the migrator operates silently.
// Usage: NewMigrator(WithLogger(slog.Default()))
func WithLogger(logger *slog.Logger) Option {
	return func(m Migrator) Migrator {
		if logger != nil {
			m.Logger = logger
		}
		return m
	}
}
