package snapshot

import (
	"context"
	"fmt"
)

// MediaObjectsWithNonMatchingCdn walks the remote listing and returns the
// current local entry for every ref whose cdn disagrees with the local
// record. The returned entries carry the locally recorded cdn. Refs without
// a current local entry are ignored, as are older generations. Entries are
// returned once each, in the order of their first mismatching ref.
func (s *SQLiteStore) MediaObjectsWithNonMatchingCdn(ctx context.Context, remote []RemoteMediaRef) ([]MediaEntry, error) {
	if len(remote) == 0 {
		return nil, nil
	}
	local, err := s.currentEntriesFor(ctx, remote)
	if err != nil {
		return nil, fmt.Errorf("snapshot: cdn mismatch: %w", err)
	}
	var out []MediaEntry
	reported := make(map[string]struct{})
	for _, ref := range remote {
		e, ok := local[ref.MediaID]
		if !ok || e.Cdn == ref.Cdn {
			continue
		}
		if _, done := reported[ref.MediaID]; done {
			continue
		}
		reported[ref.MediaID] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// MediaObjectsThatCantBeFound returns the remote refs, unmodified and in
// listing order, whose media id is not part of the current snapshot. An
// empty listing yields an empty result.
func (s *SQLiteStore) MediaObjectsThatCantBeFound(ctx context.Context, remote []RemoteMediaRef) ([]RemoteMediaRef, error) {
	if len(remote) == 0 {
		return nil, nil
	}
	local, err := s.currentEntriesFor(ctx, remote)
	if err != nil {
		return nil, fmt.Errorf("snapshot: cant be found: %w", err)
	}
	var out []RemoteMediaRef
	for _, ref := range remote {
		if _, ok := local[ref.MediaID]; !ok {
			out = append(out, ref)
		}
	}
	return out, nil
}

// currentEntriesFor loads the current-snapshot entries matching the refs,
// keyed by media id. The version is read once so every chunk is compared
// against the same generation.
func (s *SQLiteStore) currentEntriesFor(ctx context.Context, remote []RemoteMediaRef) (map[string]MediaEntry, error) {
	version, err := currentVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make(map[string]MediaEntry)
	if version == UnknownVersion {
		return out, nil
	}
	ids := make([]string, len(remote))
	for i, ref := range remote {
		ids[i] = ref.MediaID
	}
	for _, chunk := range chunkIDs(ids, maxLookupIDs) {
		q := `SELECT ` + entryColumns + ` FROM media_snapshot WHERE snapshot_version = ? AND media_id IN (` + placeholders(len(chunk)) + `)`
		rows, err := s.db.QueryContext(ctx, q, idArgs([]any{version}, chunk)...)
		if err != nil {
			return nil, err
		}
		entries, err := collectEntries(rows)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			out[e.MediaID] = e
		}
	}
	return out, nil
}
