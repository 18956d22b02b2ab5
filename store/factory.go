package store

import "fmt"

// Backends lists the names accepted by New.
var Backends = []string{"memory", "sqlite"}

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"memory" - In-memory slices with an id index (default)
//	"sqlite" - Private in-memory SQLite database
func New(backend string) (Store, error) {
	switch backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSqliteStore()
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: memory, sqlite)", backend)
	}
}
