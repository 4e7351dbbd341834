package engine

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// filePragmas are applied to every connection of a file-backed database.
// WAL lets readers proceed while the snapshot committer holds the write lock;
// _txlock=immediate makes BeginTx reserve that lock up front.
const filePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./media.sqlite"; WAL mode,
// a busy timeout and immediate transactions are configured on every pooled
// connection. A DSN that already carries a "file:" prefix or query
// parameters is passed through unchanged.
//
// ":memory:" databases are pinned to a single connection, since each
// connection would otherwise see its own empty database.
func Open(dsn string) (*sql.DB, error) {
	if dsn == MemoryDSN {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return db, nil
	}
	return sql.Open("sqlite", FileDSN(dsn))
}

// FileDSN expands a plain database path into a DSN carrying the pragmas used
// by this module.
func FileDSN(path string) string {
	if strings.HasPrefix(path, "file:") || strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?" + filePragmas
}
