package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Seed files follow the one-file-per-collection layout:
//
//	seed_dir/
//	  statements.json   # JSON array (or single object)
//	  activities.json
//	  agents.json
//	  verbs.json
//
// Missing files are skipped. Seeds are only ever read.

func seedPath(dir string, kind Kind) string {
	return filepath.Join(dir, string(kind)+".json")
}

// ReadDocuments loads a JSON file holding either an array of objects or a
// single object.
func ReadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []Document{}, nil
	}
	if data[0] == '{' {
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []Document{doc}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var docs []Document
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, doc := range docs {
		if doc == nil {
			return nil, fmt.Errorf("%s: element %d is not an object", path, i)
		}
	}
	return docs, nil
}

// WriteDocuments writes docs as an indented JSON array, creating parent
// directories as needed.
func WriteDocuments(path string, docs []Document) error {
	if docs == nil {
		docs = []Document{}
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// LoadSeedDir inserts the documents of every <kind>.json found in dir and
// returns how many were loaded per kind. Every seed document needs a string id.
func LoadSeedDir(ctx context.Context, s Store, dir string) (map[Kind]int, error) {
	loaded := make(map[Kind]int, len(Kinds))
	for _, kind := range Kinds {
		path := seedPath(dir, kind)
		docs, err := ReadDocuments(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("seed %s: %w", kind, err)
		}
		for i, doc := range docs {
			if _, ok := doc.ID(); !ok {
				return loaded, fmt.Errorf("seed %s: document %d: %w", kind, i, ErrMissingID)
			}
			if err := s.Insert(ctx, kind, doc); err != nil {
				return loaded, fmt.Errorf("seed %s: document %d: %w", kind, i, err)
			}
			loaded[kind]++
		}
	}
	return loaded, nil
}
