package db

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Key is an order-preserving composite key. Byte-wise comparison of two
// encoded keys matches the comparison of their components in order.
//
// Encoding per component:
//   - int64: 8 bytes big-endian with the sign bit flipped
//   - string: bytes with 0x00 escaped as 0x00 0xFF, terminated by 0x00 0x01
type Key []byte

// NewKey returns an empty key.
func NewKey() Key {
	return Key{}
}

// Int64 returns a new key with v appended.
func (k Key) Int64(v int64) Key {
	out := make(Key, len(k), len(k)+8)
	copy(out, k)
	return binary.BigEndian.AppendUint64(out, uint64(v)^(1<<63))
}

// Text returns a new key with s appended.
func (k Key) Text(s string) Key {
	out := make(Key, len(k), len(k)+len(s)+2)
	copy(out, k)
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			out = append(out, 0x00, 0xFF)
			continue
		}
		out = append(out, s[i])
	}
	return append(out, 0x00, 0x01)
}

// HasPrefix reports whether k starts with prefix.
func (k Key) HasPrefix(prefix Key) bool {
	return bytes.HasPrefix(k, prefix)
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if no such key exists.
func prefixEnd(prefix Key) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

var errKeyTruncated = errors.New("key truncated")

// KeyReader decodes the components of a Key in order.
type KeyReader struct {
	rest []byte
}

// ReadKey starts decoding k.
func ReadKey(k []byte) *KeyReader {
	return &KeyReader{rest: k}
}

// Skip consumes prefix, which must be how the remaining key starts.
func (r *KeyReader) Skip(prefix Key) error {
	if !bytes.HasPrefix(r.rest, prefix) {
		return fmt.Errorf("key does not start with prefix %x", []byte(prefix))
	}
	r.rest = r.rest[len(prefix):]
	return nil
}

// Int64 decodes the next int64 component.
func (r *KeyReader) Int64() (int64, error) {
	if len(r.rest) < 8 {
		return 0, errKeyTruncated
	}
	v := int64(binary.BigEndian.Uint64(r.rest[:8]) ^ (1 << 63))
	r.rest = r.rest[8:]
	return v, nil
}

// Text decodes the next string component.
func (r *KeyReader) Text() (string, error) {
	var out []byte
	for i := 0; i < len(r.rest); i++ {
		c := r.rest[i]
		if c != 0x00 {
			out = append(out, c)
			continue
		}
		if i+1 >= len(r.rest) {
			return "", errKeyTruncated
		}
		switch r.rest[i+1] {
		case 0xFF:
			out = append(out, 0x00)
			i++
		case 0x01:
			r.rest = r.rest[i+2:]
			return string(out), nil
		default:
			return "", fmt.Errorf("invalid string escape 0x00 0x%02x", r.rest[i+1])
		}
	}
	return "", errKeyTruncated
}
