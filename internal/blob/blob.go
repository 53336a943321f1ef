// Package blob stores component images and resolves component image
// references against the store.
package blob

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a key is absent from the store.
var ErrNotFound = errors.New("blob not found")

// NamingPolicy produces a new key for a blob with the given file extension.
type NamingPolicy func(ext string) string

// ComponentNaming names component images "component-<uuid><ext>".
func ComponentNaming(ext string) string {
	return "component-" + uuid.NewString() + ext
}

// Store is a key/value store for binary objects.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, data []byte, mime string, naming NamingPolicy) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}
