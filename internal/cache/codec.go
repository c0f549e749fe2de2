package cache

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes a cached value with MessagePack.
func Encode(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cache encode: %w", err)
	}
	return b, nil
}

// Decode deserializes a payload written by Encode into v. Decoded
// time.Time values carry the local zone; callers normalize as needed.
func Decode(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cache decode: %w", err)
	}
	return nil
}
