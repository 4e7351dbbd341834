package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/viant/mediasnap/mediaid"
	"github.com/viant/mediasnap/snapshot"
)

type localRecord struct {
	MediaID       string `json:"media_id,omitempty"`
	Cdn           int    `json:"cdn"`
	PlaintextHash string `json:"plaintext_hash"`
	RemoteKey     string `json:"remote_key"`
	Thumbnail     bool   `json:"thumbnail,omitempty"`
}

type remoteRecord struct {
	MediaID string `json:"media_id"`
	Cdn     int    `json:"cdn"`
}

// localManifest enumerates local media from a JSON file.
type localManifest struct {
	path    string
	deriver *mediaid.Deriver
}

func (m localManifest) EnumerateLocalMedia(ctx context.Context) ([]snapshot.MediaEntry, error) {
	var records []localRecord
	if err := readJSON(m.path, &records); err != nil {
		return nil, err
	}
	out := make([]snapshot.MediaEntry, 0, len(records))
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := m.entry(r)
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", m.path, i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (m localManifest) entry(r localRecord) (snapshot.MediaEntry, error) {
	hash, err := hex.DecodeString(r.PlaintextHash)
	if err != nil {
		return snapshot.MediaEntry{}, fmt.Errorf("plaintext_hash: %w", err)
	}
	key, err := hex.DecodeString(r.RemoteKey)
	if err != nil {
		return snapshot.MediaEntry{}, fmt.Errorf("remote_key: %w", err)
	}
	if r.MediaID != "" {
		return snapshot.MediaEntry{
			MediaID:       r.MediaID,
			Cdn:           r.Cdn,
			PlaintextHash: hash,
			RemoteKey:     key,
			IsThumbnail:   r.Thumbnail,
		}, nil
	}
	if m.deriver == nil {
		return snapshot.MediaEntry{}, fmt.Errorf("media_id is missing and no --key was given")
	}
	return snapshot.NewMediaEntry(m.deriver, r.Cdn, hash, key, r.Thumbnail)
}

// remoteManifest lists remote media from a JSON file.
type remoteManifest string

func (m remoteManifest) ListRemoteMedia(ctx context.Context) ([]snapshot.RemoteMediaRef, error) {
	var records []remoteRecord
	if err := readJSON(string(m), &records); err != nil {
		return nil, err
	}
	out := make([]snapshot.RemoteMediaRef, len(records))
	for i, r := range records {
		out[i] = snapshot.RemoteMediaRef{MediaID: r.MediaID, Cdn: r.Cdn}
	}
	return out, nil
}

// orphanFile appends orphaned remote objects as JSON lines.
type orphanFile string

func (f orphanFile) DeleteRemoteMedia(ctx context.Context, entries []snapshot.MediaEntry) error {
	file, err := os.OpenFile(string(f), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(file)
	for _, e := range entries {
		if err := enc.Encode(remoteRecord{MediaID: e.MediaID, Cdn: e.Cdn}); err != nil {
			_ = file.Close()
			return err
		}
	}
	return file.Close()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
