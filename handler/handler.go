// Package handler provides the HTTP handlers for the xAPI reference server.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/stevemurr/xapi-server/store"
)

// Version is reported by the discovery document.
const Version = "1.0.0"

// DefaultMaxBodyBytes caps POST bodies when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 2 << 20

// Options tunes request handling.
type Options struct {
	// RejectDuplicateIDs makes a POST whose id is already stored fail with 409.
	// Off by default: duplicates are accepted and GET returns the first one.
	RejectDuplicateIDs bool

	// MaxBodyBytes limits POST bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// NewID generates statement ids. Defaults to uuid.NewString.
	NewID func() string

	Logger *slog.Logger
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store store.Store
	opts  Options
	log   *slog.Logger
	mux   *http.ServeMux
}

// New creates a Handler and wires up all routes.
func New(s store.Store, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Handler{store: s, opts: opts, log: opts.Logger, mux: http.NewServeMux()}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.HandleFunc("GET /docs", h.docs)
	h.mux.HandleFunc("GET /contexts/{name}", h.jsonLDContext)

	for _, kind := range store.Kinds {
		h.mux.HandleFunc("GET /"+string(kind), h.listDocuments(kind))
		h.mux.HandleFunc("GET /"+string(kind)+"/{id}", h.getDocument(kind))
		if kind == store.Statements {
			h.mux.HandleFunc("POST /statements", h.createStatement)
		} else {
			h.mux.HandleFunc("POST /"+string(kind), h.createDocument(kind))
		}
	}

	// Everything else, including wrong methods on known paths.
	h.mux.HandleFunc("/", h.notFound)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var errInvalidJSON = errors.New("invalid JSON")

// readDocument decodes the request body as a single JSON object. An empty
// body is an empty document.
func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request) (store.Document, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return store.Document{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errInvalidJSON
	}
	if dec.More() {
		return nil, errInvalidJSON
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errInvalidJSON
	}
	return store.Document(obj), nil
}

func (h *Handler) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid JSON")
}

func (h *Handler) storeFailure(w http.ResponseWriter, r *http.Request, kind store.Kind, err error) {
	h.log.Error("store operation failed", "kind", kind, "method", r.Method, "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func location(kind store.Kind, id string) string {
	return "/" + string(kind) + "/" + url.PathEscape(id)
}

// ---------- status endpoints ----------

type link struct {
	Href string `json:"href"`
}

type discovery struct {
	Links         map[string]link `json:"_links"`
	Version       string          `json:"version"`
	Documentation string          `json:"documentation"`
}

var discoveryDoc = func() discovery {
	links := map[string]link{"self": {Href: "/"}}
	for _, kind := range store.Kinds {
		links[string(kind)] = link{Href: "/" + string(kind)}
	}
	return discovery{Links: links, Version: Version, Documentation: "/docs"}
}()

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, discoveryDoc)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}

// ---------- reads ----------

func (h *Handler) listDocuments(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := h.store.List(r.Context(), kind)
		if err != nil {
			h.storeFailure(w, r, kind, err)
			return
		}
		if docs == nil {
			docs = []store.Document{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func (h *Handler) getDocument(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := h.store.Get(r.Context(), kind, r.PathValue("id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, kind.Title()+" not found")
			return
		}
		if err != nil {
			h.storeFailure(w, r, kind, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// ---------- writes ----------

// idField inspects the "id" field. Absent, null and "" all count as missing;
// any other non-string value is rejected.
func idField(doc store.Document) (id string, present bool, err error) {
	raw, ok := doc["id"]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("id must be a string")
	}
	return s, s != "", nil
}

func (h *Handler) insert(w http.ResponseWriter, r *http.Request, kind store.Kind, doc store.Document) bool {
	var err error
	if h.opts.RejectDuplicateIDs {
		err = h.store.InsertUnique(r.Context(), kind, doc)
	} else {
		err = h.store.Insert(r.Context(), kind, doc)
	}
	if errors.Is(err, store.ErrDuplicateID) {
		writeError(w, http.StatusConflict, kind.Title()+" already exists")
		return false
	}
	if err != nil {
		h.storeFailure(w, r, kind, err)
		return false
	}
	return true
}

func (h *Handler) createStatement(w http.ResponseWriter, r *http.Request) {
	doc, err := h.readDocument(w, r)
	if err != nil {
		h.writeBodyError(w, err)
		return
	}
	id, present, err := idField(doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, store.Statements.Title()+" id must be a string")
		return
	}
	if !present {
		id = h.opts.NewID()
		doc["id"] = id
	}
	if !h.insert(w, r, store.Statements, doc) {
		return
	}
	w.Header().Set("Location", location(store.Statements, id))
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) createDocument(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := h.readDocument(w, r)
		if err != nil {
			h.writeBodyError(w, err)
			return
		}
		id, present, err := idField(doc)
		if err != nil {
			writeError(w, http.StatusBadRequest, kind.Title()+" id must be a string")
			return
		}
		if !present {
			writeError(w, http.StatusBadRequest, kind.Title()+" requires id")
			return
		}
		if !h.insert(w, r, kind, doc) {
			return
		}
		w.Header().Set("Location", location(kind, id))
		writeJSON(w, http.StatusCreated, doc)
	}
}
