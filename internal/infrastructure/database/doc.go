// Package database provides the SQLite store behind medminder's
// persisted medication state and dose history.
//
// The database runs in WAL mode with a single connection. Schema changes
// are versioned SQL files embedded by the migrations package and applied
// at startup:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// The file is created with 0600 permissions. All queries are parameterised.
package database
