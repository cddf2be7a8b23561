package httpapi

import "net/http"

const defaultMaxBodyBytes int64 = 1 << 20

// maxBodyBytes bounds request bodies for JSON endpoints.
var maxBodyBytes = defaultMaxBodyBytes

// SetMaxBodyBytes configures the maximum request body size. Non-positive
// values restore the 1 MiB default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// CORS configuration (opt-in). With no origins no CORS middleware is added.
var (
	corsAllowedOrigins []string
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsAllowedHeaders = []string{"Accept", "Content-Type", "X-Log-Level", "X-Request-Id"}
)

// SetCORSOrigins enables CORS for the given origins. Empty disables it.
func SetCORSOrigins(origins []string) {
	corsAllowedOrigins = append([]string(nil), origins...)
}

func corsEnabled() bool { return len(corsAllowedOrigins) > 0 }
