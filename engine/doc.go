// Package engine provides helpers for working with the modernc.org/sqlite
// driver in this module: opening connections with the pragmas the snapshot
// store relies on and registering the media id SQL functions. It keeps a
// thin surface so other packages can share the same driver instance.
package engine
