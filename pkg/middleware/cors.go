package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists exact origins ("https://reviews.example") or
	// subdomain wildcards ("https://*.reviews.example"). "*" allows any
	// origin.
	AllowedOrigins []string

	AllowedMethods []string
	AllowedHeaders []string
	// ExposedHeaders are readable by browser scripts.
	ExposedHeaders []string

	// MaxAge is how long preflight results may be cached, in seconds.
	MaxAge int

	AllowCredentials bool

	// Environment "development" allows every origin regardless of
	// AllowedOrigins.
	Environment string
}

// DefaultCORSConfig returns the development configuration. Content-Disposition
// is exposed so browsers can read export file names.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", CorrelationHeader},
		ExposedHeaders: []string{CorrelationHeader, "Content-Disposition", "Retry-After"},
		MaxAge:         3600,
		Environment:    "development",
	}
}

type corsPolicy struct {
	any       bool
	exact     map[string]struct{}
	wildcards []string // "https://" + "." + domain suffix, e.g. "https://.reviews.example"
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	p := corsPolicy{any: cfg.Environment == "development", exact: make(map[string]struct{})}
	for _, o := range cfg.AllowedOrigins {
		switch {
		case o == "*":
			p.any = true
		case strings.Contains(o, "://*."):
			p.wildcards = append(p.wildcards, strings.Replace(o, "://*.", "://.", 1))
		default:
			p.exact[o] = struct{}{}
		}
	}
	return p
}

func (p corsPolicy) allows(origin string) bool {
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, w := range p.wildcards {
		scheme, suffix, _ := strings.Cut(w, "://")
		host, ok := strings.CutPrefix(origin, scheme+"://")
		if ok && strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
			return true
		}
	}
	return false
}

// CORS answers preflight requests and sets Access-Control headers for
// allowed origins. Responses for disallowed origins carry no CORS headers.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	defaults := DefaultCORSConfig()
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaults.AllowedMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaults.AllowedHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaults.MaxAge
	}

	policy := newCORSPolicy(cfg)
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			h := w.Header()
			h.Add("Vary", "Origin")
			switch {
			case origin == "":
			case policy.any && !cfg.AllowCredentials:
				h.Set("Access-Control-Allow-Origin", "*")
			case policy.any || policy.allows(origin):
				h.Set("Access-Control-Allow-Origin", origin)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			default:
				if preflight {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}
			if preflight {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
