// Package mediaid derives the content-addressable identifiers used to name
// backed-up media objects on the CDN. A media name is a public digest of the
// plaintext hash and remote key; the media id is that name keyed with the
// backup key so the server cannot link it to the plaintext.
package mediaid
