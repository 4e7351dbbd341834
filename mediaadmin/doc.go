// Package mediaadmin registers a SQLite virtual table that reports snapshot
// statistics and runs collection from plain SQL.
package mediaadmin
