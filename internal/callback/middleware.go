package callback

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"
)

// withRequestLog logs each callback request and turns handler panics into a 500.
func withRequestLog(logger *slog.Logger, next http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),

		// Only the query carries OAuth material; headers and bodies stay out of the log
		LogRequestHeaders:  []string{"Content-Type", "Origin"},
		LogResponseHeaders: []string{},

		RecoverPanics: true,
	})(next)
}
