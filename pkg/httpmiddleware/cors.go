package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access to the marketplace API.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to call the API from a browser.
	// Empty, or a single "*", opens it to every origin.
	AllowOrigins []string

	// AllowMethods is sent on preflight responses. The API only serves GET
	// and POST, so that is the default when empty.
	AllowMethods []string

	// AllowHeaders lists request headers clients may send (the api-key header
	// in particular). When empty, preflight echoes whatever the browser asked
	// for in Access-Control-Request-Headers.
	AllowHeaders []string

	// ExposeHeaders lists response headers browser scripts may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and authorization headers. Incompatible
	// with the wildcard origin, so setting it forces per-origin echo.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header; negative sends "0" to disable caching.
	MaxAge int
}

// corsHeaders holds the precomputed header values shared by every request.
type corsHeaders struct {
	wildcard    bool
	origins     map[string]string // lowercased origin -> configured spelling
	methods     string
	headers     string
	expose      string
	credentials bool
	maxAge      string
}

func buildCORSHeaders(cfg CORSConfig) corsHeaders {
	h := corsHeaders{
		wildcard:    len(cfg.AllowOrigins) == 0,
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			h.wildcard = true
			break
		}
		h.origins[strings.ToLower(o)] = o
	}
	// The fetch spec forbids "*" with credentials; echo the origin instead.
	if h.credentials {
		h.wildcard = false
	}
	if h.methods == "" {
		h.methods = "GET, POST, OPTIONS"
	}
	switch {
	case cfg.MaxAge > 0:
		h.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		h.maxAge = "0"
	}
	return h
}

// resolve returns the Access-Control-Allow-Origin value for a request origin,
// or "" when the origin is not permitted. Matching is case-insensitive but
// the configured spelling is echoed back.
func (h corsHeaders) resolve(origin string) string {
	if h.wildcard {
		return "*"
	}
	return h.origins[strings.ToLower(origin)]
}

// CORS handles browser cross-origin requests: preflight OPTIONS short-circuit
// with the allow headers, actual requests get Access-Control-Allow-Origin
// stamped before the handler runs. Vary is set whenever the response depends
// on the request origin, so shared caches keep per-origin entries apart.
func CORS(cfg CORSConfig) Middleware {
	hdrs := buildCORSHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Same-origin or non-browser client.
				if !hdrs.wildcard {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := hdrs.resolve(origin)

			if isPreflight(r) {
				hdrs.writePreflight(w, r, allowOrigin)
				return
			}

			if !hdrs.wildcard {
				w.Header().Add("Vary", "Origin")
			}
			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				if hdrs.credentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if hdrs.expose != "" {
					w.Header().Set("Access-Control-Expose-Headers", hdrs.expose)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

func (h corsHeaders) writePreflight(w http.ResponseWriter, r *http.Request, allowOrigin string) {
	w.Header().Add("Vary", "Origin")
	w.Header().Add("Vary", "Access-Control-Request-Method")
	w.Header().Add("Vary", "Access-Control-Request-Headers")

	// Disallowed origin: 204 with no allow headers, the browser blocks it.
	if allowOrigin == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
	w.Header().Set("Access-Control-Allow-Methods", h.methods)

	if h.headers != "" {
		w.Header().Set("Access-Control-Allow-Headers", h.headers)
	} else if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
		w.Header().Set("Access-Control-Allow-Headers", req)
	}
	if h.credentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	if h.maxAge != "" {
		w.Header().Set("Access-Control-Max-Age", h.maxAge)
	}

	w.WriteHeader(http.StatusNoContent)
}
