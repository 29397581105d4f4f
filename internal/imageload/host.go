package imageload

import "context"

// Host is the UI capability the loader mounts its file chooser on.
type Host interface {
	// Mount attaches a hidden chooser identified by id and filtered to the
	// accepted mime types.
	Mount(ctx context.Context, id string, accept []string) (Chooser, error)
}

// Chooser is a transient file-choice element.
type Chooser interface {
	// Choose opens the dialog and blocks until the user confirms. A nil
	// selection means the user confirmed without choosing anything.
	Choose(ctx context.Context) (*FileSelection, error)
	// Remove detaches the element from the host.
	Remove() error
}
