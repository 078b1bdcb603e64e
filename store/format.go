package store

import (
	"bytes"
	"encoding/gob"
	"encoding/json"

	"github.com/pkg/errors"
)

// Format is the closed set of serialization formats a Store can be
// parameterized over. Every persisted type must support both.
type Format int

const (
	// FormatJSON serializes with encoding/json: human-readable, used when
	// inspectability of the snapshot file matters more than size or speed.
	FormatJSON Format = iota
	// FormatGob is the Bincode-equivalent compact binary form. No
	// third-party compact binary codec appears anywhere in this project's
	// reference corpus, so this one concern is implemented on the
	// standard library's encoding/gob (see DESIGN.md).
	FormatGob
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatGob:
		return "gob"
	default:
		return "unknown"
	}
}

func marshal(format Format, v interface{}) ([]byte, error) {
	switch format {
	case FormatJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, newError(KindSerialization, err, "encode as json")
		}
		return b, nil
	case FormatGob:
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			return nil, newError(KindSerialization, err, "encode as gob")
		}
		return buf.Bytes(), nil
	default:
		return nil, newError(KindOther, errors.Errorf("unknown format %d", format), "encode")
	}
}

func unmarshal(format Format, data []byte, v interface{}) error {
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, v); err != nil {
			return newError(KindSerialization, err, "decode json")
		}
		return nil
	case FormatGob:
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
			return newError(KindSerialization, err, "decode gob")
		}
		return nil
	default:
		return newError(KindOther, errors.Errorf("unknown format %d", format), "decode")
	}
}
