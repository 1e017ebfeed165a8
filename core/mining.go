package core

import (
	"crypto/sha256"
	"encoding"
	"encoding/binary"
	"errors"
	"strings"
)

// ErrKeyNotFound is returned by Mine if the search domain is exhausted
// without finding a valid closure key. Practically unreachable for small
// magic numbers.
var ErrKeyNotFound = errors.New("core: key not found")

// Mine searches for the first 32-byte big-endian integer key, starting at
// zero, for which block.VerifyKey(key) holds. The hash state covering the
// parent signature and message signatures is computed once and cloned per
// trial via the standard library's binary marshal/unmarshal hooks, so each
// trial only hashes the trailing key bytes.
func Mine(block *Block) ([]byte, error) {
	base := sha256.New()
	base.Write(block.Parent.Signature)
	for _, m := range block.Messages {
		base.Write(m.Signature)
	}
	baseState, err := base.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		return nil, err
	}

	key := make([]byte, keyLength)
	for i := uint64(0); i < 1<<32; i++ {
		binary.BigEndian.PutUint64(key[keyLength-8:], i)

		h := sha256.New()
		if err := h.(encoding.BinaryUnmarshaler).UnmarshalBinary(baseState); err != nil {
			return nil, err
		}
		h.Write(key)

		if strings.HasSuffix(hexLower(h.Sum(nil)), block.MagicNumber) {
			out := make([]byte, keyLength)
			copy(out, key)
			return out, nil
		}
	}

	return nil, ErrKeyNotFound
}
