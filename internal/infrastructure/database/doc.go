// Package database provides SQLite connectivity for the climate control service.
//
// The database stores:
//   - config_entries: climate controllers created through the config flow
//   - state_history: recorded entity state changes
//   - automation_runs: the trail of mirror automation executions
//
// Connections use WAL mode with a single writer. Schema changes are
// shipped as embedded migration files (see the migrations package) and
// applied at startup by Migrate.
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. New columns must be NULLABLE or carry a
// DEFAULT so older binaries keep working against a migrated file.
package database
