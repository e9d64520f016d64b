// Package fingerprint produces fixed-size content digests for change
// detection. Digests are 128-bit BLAKE3 hashes rendered as lowercase hex,
// deterministic across runs and platforms, and compared in constant time.
package fingerprint

import (
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"
)

// Size is the digest length in bytes.
const Size = 16

// Digest is a lowercase hex encoding of a 128-bit content hash. The zero
// value represents an absent digest (e.g. "issue has no attachments").
type Digest string

// IsZero reports whether the digest is absent.
func (d Digest) IsZero() bool { return d == "" }

func sum(data []byte) Digest {
	h := blake3.New()
	h.Write(data)
	full := h.Sum(nil)
	return Digest(hex.EncodeToString(full[:Size]))
}

// Text fingerprints canonical text. Callers are expected to canonicalize
// first; Text hashes exactly the bytes it is given.
func Text(canonical string) Digest {
	return sum([]byte(canonical))
}

// IDSet fingerprints a set of numeric identifiers. The input is deduplicated
// and sorted before serialization, so the result is insensitive to discovery
// order and repeated ids. Serialization is an 8-byte little-endian count
// followed by each id as a little-endian signed 64-bit value.
func IDSet(ids []int64) Digest {
	seen := make(map[int64]struct{}, len(ids))
	uniq := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	payload := make([]byte, 8*(len(uniq)+1))
	binary.LittleEndian.PutUint64(payload[:8], uint64(len(uniq)))
	for i, id := range uniq {
		binary.LittleEndian.PutUint64(payload[8*(i+1):], uint64(id))
	}
	return sum(payload)
}

// Equal compares two digests in constant time with respect to their content.
// Two absent digests are equal; absent versus present is unequal.
func Equal(a, b Digest) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() && b.IsZero()
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
