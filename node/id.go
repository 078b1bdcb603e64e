package node

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// ID globally and stably identifies a node across the lifetime of an
// engine, including across persistence and reload. It is generated from
// random bytes via crypto/rand, hex-encoded, rather than pulling in a
// UUID library none of this project's dependencies already need.
type ID string

// NewID returns a fresh, random node identifier.
func NewID() ID {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read on any supported platform does not fail in
		// practice; if it ever does, there is no sane fallback that
		// preserves the global-uniqueness guarantee NodeId requires.
		panic(errors.Wrap(err, "node: could not read random bytes for id"))
	}
	return ID(hex.EncodeToString(b[:]))
}

func (id ID) String() string { return string(id) }
