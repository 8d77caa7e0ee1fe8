// Package database opens the SQLite file behind the sqlite project store and
// applies its schema.
//
// Migrations come from any fs.FS holding files named
// YYYYMMDD_HHMMSS_name.up.sql, each with an optional .down.sql:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx, migrations.FS)
//
// Schema changes are additive. New columns are nullable or carry a default.
package database
