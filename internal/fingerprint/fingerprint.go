// Package fingerprint derives the content identity used to deduplicate
// comics. Decodable images get a 256-bit perceptual hash, so a re-encoded
// or resized copy of the same strip maps to the same fingerprint; anything
// else falls back to a BLAKE2b digest of the raw bytes.
package fingerprint

import (
	"bytes"
	"encoding/hex"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	"golang.org/x/crypto/blake2b"
)

// ErrEmpty is returned for empty input.
var ErrEmpty = errors.New("fingerprint: empty input")

const (
	hashSide    = 16
	blakePrefix = "b2:"
)

// Of returns the fingerprint of data.
func Of(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Digest(data), nil
	}
	return Perceptual(img)
}

// Perceptual returns the 16x16 perceptual hash of img in goimagehash's
// string form ("p:<hex>").
func Perceptual(img image.Image) (string, error) {
	h, err := goimagehash.ExtPerceptionHash(img, hashSide, hashSide)
	if err != nil {
		return "", err
	}
	return h.ToString(), nil
}

// Digest returns the BLAKE2b-256 digest of data, prefixed to keep it apart
// from perceptual hashes.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return blakePrefix + hex.EncodeToString(sum[:])
}
