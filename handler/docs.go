package handler

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPISource []byte

// contextFS holds the JSON-LD contexts served under /contexts/{name}.
//
//go:embed contexts/*.jsonld
var contextFS embed.FS

var (
	openAPIOnce sync.Once
	openAPIDoc  map[string]any
	openAPIErr  error
)

// OpenAPI returns the embedded API description decoded from YAML.
func OpenAPI() (map[string]any, error) {
	openAPIOnce.Do(func() {
		var doc map[string]any
		if err := yaml.Unmarshal(openAPISource, &doc); err != nil {
			openAPIErr = fmt.Errorf("parse openapi.yaml: %w", err)
			return
		}
		openAPIDoc = doc
	})
	return openAPIDoc, openAPIErr
}

func (h *Handler) docs(w http.ResponseWriter, r *http.Request) {
	doc, err := OpenAPI()
	if err != nil {
		h.log.Error("api documentation unavailable", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Context returns the embedded JSON-LD context called name, without its
// .jsonld extension.
func Context(name string) ([]byte, error) {
	path := "contexts/" + name + ".jsonld"
	if !fs.ValidPath(path) {
		return nil, fs.ErrNotExist
	}
	return contextFS.ReadFile(path)
}

func (h *Handler) jsonLDContext(w http.ResponseWriter, r *http.Request) {
	b, err := Context(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Context not found")
		return
	}
	w.Header().Set("Content-Type", "application/ld+json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
