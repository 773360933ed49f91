package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to make cross-origin requests. An
	// empty list or a single "*" entry allows every origin.
	AllowOrigins []string

	// AllowMethods lists HTTP methods clients may use in actual requests.
	// Defaults to "GET, POST, PUT, DELETE, OPTIONS" when empty.
	AllowMethods []string

	// AllowHeaders lists request headers clients may send. When empty, the
	// preflight response echoes Access-Control-Request-Headers back.
	AllowHeaders []string

	// ExposeHeaders lists response headers scripts may read.
	ExposeHeaders []string

	// AllowCredentials permits credentialed requests. The wildcard origin is
	// forbidden with credentials, so enabling this switches to echoing the
	// specific origin.
	AllowCredentials bool

	// MaxAge is how long (seconds) browsers may cache preflight results. Zero
	// omits the header; negative sends "0".
	MaxAge int
}

// cors holds the precomputed header values so the hot path does no joining.
type cors struct {
	allowAll    bool
	origins     map[string]string // lowercase -> configured case
	methods     string
	headers     string
	expose      string
	credentials bool
	maxAge      string
}

// CORS returns a middleware handling Cross-Origin Resource Sharing, including
// preflight requests. Origin matching is case-insensitive but the configured
// casing is echoed back, and Vary headers are set so shared caches never serve
// one origin's response to another.
func CORS(cfg CORSConfig) Middleware {
	c := &cors{
		allowAll:    len(cfg.AllowOrigins) == 0,
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			c.allowAll = true
			break
		}
		c.origins[strings.ToLower(o)] = o
	}
	if c.credentials {
		// Credentials + wildcard is forbidden; echo the specific origin.
		c.allowAll = false
	}
	if c.methods == "" {
		c.methods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	switch {
	case cfg.MaxAge > 0:
		c.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		c.maxAge = "0"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Outside CORS scope, but caches must still vary on Origin.
				if !c.allowAll {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				c.preflight(w, r, origin)
				return
			}

			c.actual(w, origin)
			next.ServeHTTP(w, r)
		})
	}
}

func (c *cors) resolve(origin string) string {
	if c.allowAll {
		return "*"
	}
	return c.origins[strings.ToLower(origin)]
}

func (c *cors) preflight(w http.ResponseWriter, r *http.Request, origin string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	allowOrigin := c.resolve(origin)
	if allowOrigin == "" {
		// Origin not allowed: 204 with no CORS headers.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.Set("Access-Control-Allow-Origin", allowOrigin)
	h.Set("Access-Control-Allow-Methods", c.methods)
	if c.headers != "" {
		h.Set("Access-Control-Allow-Headers", c.headers)
	} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
		h.Set("Access-Control-Allow-Headers", rh)
	}
	if c.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.maxAge != "" {
		h.Set("Access-Control-Max-Age", c.maxAge)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *cors) actual(w http.ResponseWriter, origin string) {
	h := w.Header()
	if !c.allowAll {
		h.Add("Vary", "Origin")
	}
	allowOrigin := c.resolve(origin)
	if allowOrigin == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", allowOrigin)
	if c.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.expose != "" {
		h.Set("Access-Control-Expose-Headers", c.expose)
	}
}
