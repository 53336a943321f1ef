package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/erazemk/komponente/internal/imaging"
)

// Resolver ties component image references to a Store. It normalises
// uploads before storing them and treats keys that are already gone as
// detached.
type Resolver struct {
	Store   Store
	Naming  NamingPolicy
	Imaging imaging.Options
}

// NewResolver returns a resolver storing component images in store.
func NewResolver(store Store) *Resolver {
	return &Resolver{Store: store, Naming: ComponentNaming}
}

// Attach processes an uploaded image and stores it, returning the new key.
// Any previously referenced blob is left alone; callers detach it once the
// new reference is committed.
func (r *Resolver) Attach(ctx context.Context, upload io.Reader) (string, error) {
	img, err := imaging.Process(upload, r.Imaging)
	if err != nil {
		return "", fmt.Errorf("processing image: %w", err)
	}

	naming := r.Naming
	if naming == nil {
		naming = ComponentNaming
	}
	key, err := r.Store.Put(ctx, img.Data, img.MIME, naming)
	if err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	return key, nil
}

// Detach removes the blob behind key. A key that is already absent counts as
// detached. Other store errors are returned for the caller to decide on.
func (r *Resolver) Detach(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := r.Store.Delete(ctx, key)
	if err == nil || errors.Is(err, ErrNotFound) {
		return nil
	}
	return fmt.Errorf("detaching image %s: %w", key, err)
}

// Open returns the image stored under key.
func (r *Resolver) Open(ctx context.Context, key string) ([]byte, string, error) {
	return r.Store.Get(ctx, key)
}
