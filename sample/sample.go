// Package sample generates example xAPI statements as JSON-LD documents.
//
// The output is meant for seeding a server or exercising the validate
// command; nothing here talks to the API.
package sample

import (
	"time"

	"github.com/google/uuid"

	"github.com/stevemurr/xapi-server/store"
)

// DefaultContext is the JSON-LD context referenced by generated statements.
const DefaultContext = "/contexts/statement-context"

type actor struct{ mbox, name string }

var (
	actors = []actor{
		{"mailto:test@example.org", "Test User"},
		{"mailto:alice@example.org", "Alice"},
		{"mailto:bob@example.org", "Bob"},
	}
	verbs   = []string{"experienced", "completed", "attempted"}
	objects = []string{
		"http://example.org/activity/demo",
		"http://example.org/activity/quiz",
		"http://example.org/activity/video",
	}
)

// Generator builds statements. Zero-value fields fall back to random UUIDs,
// the wall clock and DefaultContext.
type Generator struct {
	NewID   func() string
	Now     func() time.Time
	Context string
}

// Statements returns n statements cycling through a fixed set of actors,
// verbs and activities.
func (g *Generator) Statements(n int) []store.Document {
	newID := g.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := g.Now
	if now == nil {
		now = time.Now
	}
	ctx := g.Context
	if ctx == "" {
		ctx = DefaultContext
	}

	docs := make([]store.Document, 0, n)
	for i := 0; i < n; i++ {
		a := actors[i%len(actors)]
		verb := verbs[i%len(verbs)]
		docs = append(docs, store.Document{
			"@context": ctx,
			"id":       "urn:uuid:" + newID(),
			"actor":    map[string]any{"mbox": a.mbox, "name": a.name},
			"verb": map[string]any{
				"id":      "http://adlnet.gov/expapi/verbs/" + verb,
				"display": map[string]any{"en": verb},
			},
			"object":    map[string]any{"id": objects[i%len(objects)]},
			"timestamp": now().UTC().Format(time.RFC3339),
		})
	}
	return docs
}
