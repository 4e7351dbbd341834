package mediaid

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// ThumbnailSuffix distinguishes the thumbnail variant of a media name.
	ThumbnailSuffix = "_thumbnail"

	idInfo   = "Media ID"
	idLength = 15
)

var (
	ErrEmptyInput = errors.New("mediaid: plaintext hash and remote key are required")
	ErrEmptyKey   = errors.New("mediaid: backup key is required")
)

// MediaName returns hex(SHA-256(plaintextHash || remoteKey)), suffixed with
// ThumbnailSuffix for the thumbnail variant.
func MediaName(plaintextHash, remoteKey []byte, thumbnail bool) (string, error) {
	if len(plaintextHash) == 0 || len(remoteKey) == 0 {
		return "", ErrEmptyInput
	}
	h := sha256.New()
	h.Write(plaintextHash)
	h.Write(remoteKey)
	name := hex.EncodeToString(h.Sum(nil))
	if thumbnail {
		name += ThumbnailSuffix
	}
	return name, nil
}

// Deriver computes media ids under a single backup key.
type Deriver struct {
	key []byte
}

// NewDeriver returns a Deriver bound to a copy of backupKey.
func NewDeriver(backupKey []byte) (*Deriver, error) {
	if len(backupKey) == 0 {
		return nil, ErrEmptyKey
	}
	return &Deriver{key: append([]byte(nil), backupKey...)}, nil
}

// MediaID derives the id for the given variant. Identical inputs always
// produce the same id; the full-size and thumbnail variants never collide.
func (d *Deriver) MediaID(plaintextHash, remoteKey []byte, thumbnail bool) (string, error) {
	name, err := MediaName(plaintextHash, remoteKey, thumbnail)
	if err != nil {
		return "", err
	}
	return d.FromName(name)
}

// FromName derives the id for an already computed media name.
func (d *Deriver) FromName(mediaName string) (string, error) {
	if mediaName == "" {
		return "", ErrEmptyInput
	}
	r := hkdf.New(sha256.New, d.key, nil, []byte(idInfo+mediaName))
	out := make([]byte, idLength)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", fmt.Errorf("mediaid: derive: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(out), nil
}
