package snapshot

import (
	"github.com/viant/mediasnap/mediaid"
)

// NewMediaEntry builds an entry whose media id is derived from the plaintext
// hash, remote key and variant.
func NewMediaEntry(d *mediaid.Deriver, cdn int, plaintextHash, remoteKey []byte, thumbnail bool) (MediaEntry, error) {
	id, err := d.MediaID(plaintextHash, remoteKey, thumbnail)
	if err != nil {
		return MediaEntry{}, err
	}
	return MediaEntry{
		MediaID:       id,
		Cdn:           cdn,
		PlaintextHash: append([]byte(nil), plaintextHash...),
		RemoteKey:     append([]byte(nil), remoteKey...),
		IsThumbnail:   thumbnail,
	}, nil
}

// Ref returns the remote reference for e.
func (e MediaEntry) Ref() RemoteMediaRef {
	return RemoteMediaRef{MediaID: e.MediaID, Cdn: e.Cdn}
}
