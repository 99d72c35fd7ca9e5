package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path and creates the history table if
// it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		downloaded_at DATETIME NOT NULL,
		kind TEXT NOT NULL,
		path TEXT,
		size INTEGER DEFAULT 0,
		source TEXT,
		handle TEXT
	)`)

	if err != nil {
		return nil, err
	}

	return db, nil
}
