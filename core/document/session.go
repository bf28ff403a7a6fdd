package document

import (
	"context"
	"fmt"

	"github.com/docserve/docserve/core/tempstore"
)

// Load resolves a logical name and opens the document at the physical path.
// The resolved path is returned so a later Save can target the same file
// without re-resolving (a concurrent reap could otherwise shift "latest"
// between load and save). Open failures carry the logical name, never the
// physical path.
func Load(ctx context.Context, store *tempstore.Store, eng Engine, name string) (Handle, string, error) {
	path, _, err := store.Resolve(ctx, name)
	if err != nil {
		return nil, "", err
	}
	h, err := eng.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open document %q: %w", tempstore.EnsureDocxExtension(name), err)
	}
	return h, path, nil
}

// Save writes the document back through the editing engine. resolvedPath
// should be the path returned by Load; when empty the name is re-resolved.
func Save(ctx context.Context, store *tempstore.Store, h Handle, name, resolvedPath string) error {
	if resolvedPath == "" {
		var err error
		resolvedPath, _, err = store.Resolve(ctx, name)
		if err != nil {
			return err
		}
	}
	if err := h.SaveTo(resolvedPath); err != nil {
		return fmt.Errorf("save document %q: %w", tempstore.EnsureDocxExtension(name), err)
	}
	return nil
}
