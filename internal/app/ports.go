// Package app defines the application layer "ports" (interfaces) and
// simple contracts the recipe-box use-cases depend on. It follows a
// hexagonal (ports & adapters) design: this package declares what the
// core needs, while adapter packages (SQLite image store, docfile
// document store, file delivery, CLI shell) provide implementations.
package app

import "time"

// Clock abstracts time to enable deterministic testing of timestamps and
// backup filenames.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// Delivery is the file-delivery collaborator: given a payload and a
// suggested filename it makes the file available to the user (download
// directory, share sheet). Not part of the core's contract beyond
// accepting the blob.
type Delivery interface {
	Deliver(filename, mime string, data []byte) error
}

// Recorder counts application events for usage accounting. A nil Recorder
// is valid; the service then skips accounting entirely.
type Recorder interface {
	Inc(name string, delta int64)
}
