package server

//
// Request routing
//

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexjoedt/docstore"
	"github.com/alexjoedt/docstore/internal/config"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultMaxBodyBytes is the body cap used when Options leaves it unset.
const DefaultMaxBodyBytes = 16 << 20

const dataPrefix = "/data/"

// Route names, also used as the metrics route label.
const (
	routeOptions  = "options"
	routeIndex    = "index"
	routeList     = "list"
	routeAll      = "all"
	routeGet      = "get"
	routePut      = "put"
	routePostAuto = "post_auto"
	routeUnknown  = "unknown"
)

// Features switches the routes whose behavior differs between backends.
type Features struct {
	// DecodeKeys percent-decodes the :name path segment.
	DecodeKeys bool
	// AllRoute enables GET /all. The store must implement docstore.Dumper.
	AllRoute bool
	// AutoKey enables POST /data, keyed by company_name or a generated key.
	AutoKey bool
	// ListKeysOnMiss adds available_keys to the 404 for a missing document.
	ListKeysOnMiss bool
}

// FeaturesFor returns the route features of a storage backend.
func FeaturesFor(backend string) Features {
	if backend == config.BackendFile {
		return Features{}
	}
	return Features{
		DecodeKeys:     true,
		AllRoute:       true,
		AutoKey:        true,
		ListKeysOnMiss: true,
	}
}

// Options configures a Router.
type Options struct {
	// Store is the MANDATORY document backend.
	Store docstore.Store

	// Features selects backend-specific routes.
	Features Features

	// Logger receives store and error events. Defaults to a disabled logger.
	Logger zerolog.Logger

	// Message is reported by GET /.
	Message string

	// MaxBodyBytes caps POST bodies. Defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Now is the clock used for generated keys. Defaults to time.Now.
	Now func() time.Time

	// Metrics is optional.
	Metrics *Metrics
}

// Router is an [http.Handler] dispatching on (method, path) to the store.
type Router struct {
	store    docstore.Store
	features Features
	log      zerolog.Logger
	message  string
	maxBody  int64
	now      func() time.Time
	metrics  *Metrics

	routes map[string]http.Handler
}

var _ http.Handler = &Router{}

// NewRouter constructs a Router. It fails when a feature needs a store
// capability the store lacks.
func NewRouter(opts Options) (*Router, error) {
	if opts.Store == nil {
		return nil, errors.New("router requires a store")
	}
	if _, ok := opts.Store.(docstore.Dumper); opts.Features.AllRoute && !ok {
		return nil, fmt.Errorf("store %T cannot serve /all", opts.Store)
	}

	rt := &Router{
		store:    opts.Store,
		features: opts.Features,
		log:      opts.Logger,
		message:  opts.Message,
		maxBody:  opts.MaxBodyBytes,
		now:      opts.Now,
		metrics:  opts.Metrics,
	}
	if rt.maxBody <= 0 {
		rt.maxBody = DefaultMaxBodyBytes
	}
	if rt.now == nil {
		rt.now = time.Now
	}
	if rt.metrics != nil {
		rt.metrics.observeStored(rt.count(context.Background()))
	}

	handlers := map[string]http.HandlerFunc{
		routeOptions:  rt.handleOptions,
		routeIndex:    rt.handleIndex,
		routeList:     rt.handleList,
		routeAll:      rt.handleAll,
		routeGet:      rt.handleGet,
		routePut:      rt.handlePut,
		routePostAuto: rt.handlePostAuto,
		routeUnknown:  rt.handleUnknown,
	}
	rt.routes = make(map[string]http.Handler, len(handlers))
	for name, h := range handlers {
		rt.routes[name] = rt.metrics.instrument(name, h)
	}

	return rt, nil
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.routes[rt.match(r)].ServeHTTP(w, r)
}

// match returns the name of the route serving r.
func (rt *Router) match(r *http.Request) string {
	if r.Method == http.MethodOptions {
		return routeOptions
	}

	path := r.URL.Path
	switch r.Method {
	case http.MethodGet:
		switch {
		case path == "/":
			return routeIndex
		case path == "/data":
			return routeList
		case path == "/all" && rt.features.AllRoute:
			return routeAll
		case strings.HasPrefix(path, dataPrefix):
			return routeGet
		}
	case http.MethodPost:
		switch {
		case path == "/data" && rt.features.AutoKey:
			return routePostAuto
		case strings.HasPrefix(path, dataPrefix):
			return routePut
		}
	}
	return routeUnknown
}

// keyFromPath strips the /data/ prefix. Without DecodeKeys the key keeps
// its percent-encoding.
func (rt *Router) keyFromPath(r *http.Request) string {
	if rt.features.DecodeKeys {
		return strings.TrimPrefix(r.URL.Path, dataPrefix)
	}
	return strings.TrimPrefix(r.URL.EscapedPath(), dataPrefix)
}

func (rt *Router) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (rt *Router) handleIndex(w http.ResponseWriter, r *http.Request) {
	keys, err := rt.store.Keys(r.Context())
	if err != nil {
		rt.internalError(w, r, err)
		return
	}

	endpoints := map[string]string{
		"POST /data/:name": "Push research data (JSON body)",
		"GET /data/:name":  "Retrieve research data",
		"GET /data":        "List all stored data",
	}
	if rt.features.AllRoute {
		endpoints["GET /all"] = "Get all stored data in one response"
	}
	if rt.features.AutoKey {
		endpoints["POST /data"] = "Push research data keyed by company_name"
	}

	writeJSON(w, http.StatusOK, indexResponse{
		Status:       "running",
		Message:      rt.message,
		Endpoints:    endpoints,
		StoredKeys:   keys,
		TotalEntries: len(keys),
	})
}

func (rt *Router) handleList(w http.ResponseWriter, r *http.Request) {
	keys, err := rt.store.Keys(r.Context())
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Keys: keys, Count: len(keys)})
}

// handleAll writes every document as one object, in key listing order.
func (rt *Router) handleAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	all, err := rt.store.(docstore.Dumper).All(ctx)
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	keys, err := rt.store.Keys(ctx)
	if err != nil {
		rt.internalError(w, r, err)
		return
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range keys {
		doc, ok := all[k]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		name, _ := json.Marshal(k)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(doc)
	}
	buf.WriteByte('}')

	rt.writeDocument(w, r, "/all", buf.Bytes())
}

func (rt *Router) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := rt.keyFromPath(r)

	doc, err := rt.store.Get(ctx, key)
	switch {
	case err == nil:
		rt.writeDocument(w, r, key, doc)
	case errors.Is(err, docstore.ErrNotFound):
		rt.documentNotFound(w, r, key)
	case docstore.IsKeyError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid key", Details: err.Error()})
	default:
		rt.internalError(w, r, err)
	}
}

func (rt *Router) handlePut(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readJSONBody(w, r)
	if !ok {
		return
	}
	rt.save(w, r, rt.keyFromPath(r), body, false)
}

func (rt *Router) handlePostAuto(w http.ResponseWriter, r *http.Request) {
	body, ok := rt.readJSONBody(w, r)
	if !ok {
		return
	}
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		rt.metrics.observeRejected("invalid_json")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON", Details: "cannot read company_name of null"})
		return
	}
	rt.save(w, r, autoKey(body, rt.now()), body, true)
}

func (rt *Router) handleUnknown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found", Path: r.URL.Path})
}

func (rt *Router) save(w http.ResponseWriter, r *http.Request, key string, body []byte, echoKey bool) {
	ctx := r.Context()

	if err := rt.store.Set(ctx, key, body); err != nil {
		if docstore.IsKeyError(err) {
			rt.metrics.observeRejected("invalid_key")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid key", Details: err.Error()})
			return
		}
		if errors.Is(err, docstore.ErrInvalidJSON) {
			rt.metrics.observeRejected("invalid_json")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON", Details: err.Error()})
			return
		}
		rt.internalError(w, r, err)
		return
	}
	rt.metrics.observeWrite(len(body))

	rt.log.Info().Str("key", key).Int("size", len(body)).Msg("stored document")

	resp := saveResponse{
		Success: true,
		Message: fmt.Sprintf("Data saved as '%s'", key),
		Size:    len(body),
	}
	if echoKey {
		resp.Key = key
	}
	resp.TotalStored = rt.count(ctx)
	rt.metrics.observeStored(resp.TotalStored)

	writeJSON(w, http.StatusOK, resp)
}

// readJSONBody reads the whole body and checks that it is valid JSON. On
// failure the error response has been written and ok is false.
func (rt *Router) readJSONBody(w http.ResponseWriter, r *http.Request) (body []byte, ok bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rt.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.metrics.observeRejected("too_large")
			rt.log.Warn().Int64("limit", tooLarge.Limit).Str("path", r.URL.Path).Msg("request body too large")
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
			return nil, false
		}
		rt.metrics.observeRejected("read_error")
		rt.log.Warn().Err(err).Str("path", r.URL.Path).Msg("reading request body")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Details: err.Error()})
		return nil, false
	}

	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		rt.metrics.observeRejected("invalid_json")
		rt.log.Warn().Err(err).Str("path", r.URL.Path).Msg("error parsing JSON")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON", Details: err.Error()})
		return nil, false
	}

	return body, true
}

func (rt *Router) documentNotFound(w http.ResponseWriter, r *http.Request, key string) {
	resp := map[string]any{
		"error": fmt.Sprintf("Data '%s' not found", key),
	}
	if rt.features.ListKeysOnMiss {
		keys, err := rt.store.Keys(r.Context())
		if err != nil {
			rt.internalError(w, r, err)
			return
		}
		resp["available_keys"] = keys
	}
	writeJSON(w, http.StatusNotFound, resp)
}

// count returns the number of stored documents, or -1 if listing fails
// after a successful write.
func (rt *Router) count(ctx context.Context) int {
	keys, err := rt.store.Keys(ctx)
	if err != nil {
		rt.log.Warn().Err(err).Msg("counting stored documents")
		return -1
	}
	return len(keys)
}

// writeDocument serves a stored document. A document that fails to parse,
// such as a hand-edited file, is reported as an internal error.
func (rt *Router) writeDocument(w http.ResponseWriter, r *http.Request, name string, doc []byte) {
	if err := writeRawJSON(w, http.StatusOK, doc); err != nil {
		rt.internalError(w, r, fmt.Errorf("document %q is not valid JSON: %w", name, err))
	}
}

func (rt *Router) internalError(w http.ResponseWriter, r *http.Request, err error) {
	rt.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}

// autoKey picks the key for POST /data: a truthy company_name member, or
// entry_<epoch millis>. Numbers are formatted the way JavaScript prints
// them, so 1.0 and 1e0 both name the key "1".
func autoKey(body []byte, now time.Time) string {
	name := gjson.GetBytes(body, "company_name")
	switch name.Type {
	case gjson.String:
		if name.Str != "" {
			return name.Str
		}
	case gjson.Number:
		if name.Num != 0 && !math.IsNaN(name.Num) {
			return formatNumber(name.Num)
		}
	case gjson.True:
		return "true"
	}
	return fmt.Sprintf("entry_%d", now.UnixMilli())
}

func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	s = strings.Replace(s, "e-0", "e-", 1)
	return strings.Replace(s, "e+0", "e+", 1)
}
