package telemetry

import (
	"database/sql"

	"codeberg.org/mutker/ironmon/internal/errors"
)

// initSchema initializes the database schema for captured samples
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS samples (
            timestamp INTEGER NOT NULL,
            epoch INTEGER NOT NULL,
            elapsed REAL NOT NULL,
            temperature REAL NOT NULL,
            power REAL NOT NULL
        );
        CREATE INDEX IF NOT EXISTS samples_epoch ON samples(epoch, elapsed)
    `)
	if err != nil {
		return errors.New().Wrap(ErrStorageInit, err)
	}

	return nil
}
