package middleware

import (
	"net/http"
	"strings"
)

// CORS allows browser builds of the app to call the API. Entries may be an
// exact origin, "*" or a host with a wildcard port such as
// "http://localhost:*" (the Expo web dev server picks its port).
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAny := false
	exact := map[string]struct{}{}
	var anyPort []string
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "":
		case origin == "*":
			allowAny = true
		case strings.HasSuffix(origin, ":*"):
			anyPort = append(anyPort, strings.TrimSuffix(origin, "*"))
		default:
			exact[origin] = struct{}{}
		}
	}

	const (
		allowedHeaders = "Authorization, Content-Type, Accept, X-Request-Id"
		allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
	)

	allowed := func(origin string) bool {
		if allowAny {
			return true
		}
		if _, ok := exact[origin]; ok {
			return true
		}
		for _, prefix := range anyPort {
			if port, ok := strings.CutPrefix(origin, prefix); ok && isPort(port) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
