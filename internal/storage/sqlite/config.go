package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a database file path or a driver URI, e.g.:
	//   "pd_unique_db/database.db"
	//   "file:breach.db?_pragma=journal_mode(WAL)"
	// The parent directory of a plain path is created on open.
	DSN string
}
