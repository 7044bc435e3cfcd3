// Package migration applies versioned SQL schema changes to the agenda database.
//
// Migration files are read from an fs.FS (normally the embedded schema
// directory of the sqlite package) and follow the naming convention
// {version}_{description}.sql, for example "001_calendar_events.sql".
// Applied versions are tracked in a schema_migrations table so each file runs
// exactly once, inside its own transaction.
//
//	manager := migration.NewManager(migration.NewScanner(schemaFS, "schema"), migration.NewSQLiteExecutor(db), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
