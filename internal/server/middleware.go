package server

import (
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// withCORS sets the cross-origin headers on every response.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

// withAccessLog attaches logger to the request context and logs one line
// per completed request.
func withAccessLog(logger zerolog.Logger, next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(next)
	h = hlog.RemoteAddrHandler("remote")(h)
	return hlog.NewHandler(logger)(h)
}

// Handler wraps a router with CORS, optional gzip compression and access
// logging.
func Handler(rt *Router, logger zerolog.Logger, compress bool) http.Handler {
	var h http.Handler = rt
	if compress {
		h = gzhttp.GzipHandler(h)
	}
	h = withCORS(h)
	return withAccessLog(logger, h)
}
