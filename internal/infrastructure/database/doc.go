// Package database manages the local SQLite store for Printwatch Core.
//
// The store holds printer snapshot history. Connections run in WAL mode
// so history reads do not block behind the snapshot writer, and the pool
// is pinned to one connection to match SQLite's single-writer model.
//
// Schema changes ship as embedded migrations, applied on startup:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named <YYYYMMDD_HHMMSS>_<name>.up.sql with a
// matching .down.sql, and are registered by the migrations package.
// Tables use STRICT mode; all queries take parameterised statements.
package database
