// Package store defines the resource store interface and its implementations.
package store

import (
	"context"
	"errors"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrNotFound is returned by Get when no document in the collection has the id.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateID is returned by InsertUnique when the id is already taken.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrUnknownKind is returned for a collection name outside Kinds.
	ErrUnknownKind = errors.New("unknown resource kind")

	// ErrMissingID is returned when a document has no usable string id.
	ErrMissingID = errors.New("document has no id")
)

// Kind names one of the four resource collections.
type Kind string

const (
	Statements Kind = "statements"
	Activities Kind = "activities"
	Agents     Kind = "agents"
	Verbs      Kind = "verbs"
)

// Kinds lists every resource kind in routing order.
var Kinds = []Kind{Statements, Activities, Agents, Verbs}

var singular = map[Kind]string{
	Statements: "statement",
	Activities: "activity",
	Agents:     "agent",
	Verbs:      "verb",
}

// titles is filled once at init; a cases.Caser must not be shared between goroutines.
var titles = func() map[Kind]string {
	caser := cases.Title(language.English)
	m := make(map[Kind]string, len(singular))
	for k, s := range singular {
		m[k] = caser.String(s)
	}
	return m
}()

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	_, ok := singular[k]
	return ok
}

// Title returns the singular display name, e.g. "Statement".
func (k Kind) Title() string {
	return titles[k]
}

func (k Kind) String() string { return string(k) }

// Store is the interface that all backing stores must implement.
// Every collection is append-only and keeps insertion order.
type Store interface {
	// List returns every document of a kind in insertion order.
	List(ctx context.Context, kind Kind) ([]Document, error)

	// Get returns the first-inserted document whose id equals id, or ErrNotFound.
	Get(ctx context.Context, kind Kind, id string) (Document, error)

	// Insert appends a document. No duplicate check is performed.
	Insert(ctx context.Context, kind Kind, doc Document) error

	// InsertUnique appends a document unless its id is already present,
	// in which case it returns ErrDuplicateID. The check and the append are atomic.
	InsertUnique(ctx context.Context, kind Kind, doc Document) error

	// Close releases backend resources.
	Close() error
}
