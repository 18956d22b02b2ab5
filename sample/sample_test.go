package sample

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/xapi-server/schema"
	"github.com/stevemurr/xapi-server/store"
)

func fixedGenerator() *Generator {
	n := 0
	return &Generator{
		NewID: func() string {
			n++
			return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
		},
		Now: func() time.Time {
			return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		},
	}
}

func TestStatementsGolden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statements.jsonld")
	require.NoError(t, store.WriteDocuments(path, fixedGenerator().Statements(2)))

	out, err := os.ReadFile(path)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "statements", out)
}

func TestStatementsConformToShapes(t *testing.T) {
	v := schema.NewValidator()
	for _, doc := range (&Generator{}).Statements(5) {
		res, err := v.Check(schema.StatementShapes, doc)
		require.NoError(t, err)
		assert.True(t, res.Valid, res.Errors)
	}
}

func TestStatementsUniqueIDs(t *testing.T) {
	docs := (&Generator{}).Statements(10)
	require.Len(t, docs, 10)

	seen := map[string]bool{}
	for _, doc := range docs {
		id, ok := doc.ID()
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(id, "urn:uuid:"))
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestStatementsZero(t *testing.T) {
	assert.Empty(t, fixedGenerator().Statements(0))
}
