package blob

import "errors"

// ErrNotFound is returned when a key has no stored payload.
var ErrNotFound = errors.New("blob: not found")

// Store is a flat key-value byte store for oversized payloads that do
// not belong in regular entity rows (backup snapshots, exports).
type Store interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	Exists(key string) (bool, error)
}
