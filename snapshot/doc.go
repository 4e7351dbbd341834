// Package snapshot implements a generational record of backed-up media
// objects believed to exist on the CDN, stored in SQLite. It includes:
//   - MediaEntry and RemoteMediaRef value types and the Store interface
//   - Schema helpers creating the media_snapshot table
//   - SQLiteStore: staging, commit, reconciliation and collection
//
// Rows are staged as pending, then promoted together into a new snapshot
// version. The current snapshot is whatever version is highest; older rows
// stay until the collector deletes them.
package snapshot
