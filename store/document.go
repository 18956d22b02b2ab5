package store

import (
	"bytes"
	"encoding/json"
)

// Document is an opaque JSON object. Only the "id" field is ever inspected.
type Document map[string]any

// ID returns the document's id when it is a non-empty string.
func (d Document) ID() (string, bool) {
	id, ok := d["id"].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// deepCopy returns a deep copy of a document by round-tripping through JSON.
// Numbers are kept as json.Number so large integers survive the copy.
func deepCopy(src Document) (Document, error) {
	if src == nil {
		return nil, nil
	}
	b, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	return decodeDocument(b)
}

func decodeDocument(b []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
