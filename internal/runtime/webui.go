package runtime

import (
	"net/http"
	"strings"

	"github.com/drblury/diagflow/internal/runtime/jsoncodec"
)

// IntrospectionHandler serves the registry description as JSON. A request
// with ?id= returns only that registration.
func IntrospectionHandler(reg *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Set CORS headers based on configuration
		if origins := reg.Config().IntrospectionCORSAllowedOrigins; len(origins) > 0 {
			if allowed := getAllowedCORSOrigin(origins, r.Header.Get("Origin")); allowed != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
		}

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodGet:
		default:
			w.Header().Set("Allow", "GET, OPTIONS")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		var body any = reg.Describe()
		if id := r.URL.Query().Get("id"); id != "" {
			found, err := reg.Resolve(id)
			if err != nil {
				http.Error(w, "Not Found", http.StatusNotFound)
				return
			}
			body = found.Info()
		}

		if err := jsoncodec.Encode(w, body); err != nil {
			reg.Logger().Error("Failed to encode registry description", err, nil)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns the appropriate
// Access-Control-Allow-Origin value.
func getAllowedCORSOrigin(allowedOrigins []string, requestOrigin string) string {
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
