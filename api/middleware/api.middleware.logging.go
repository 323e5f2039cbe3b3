// FilePath: api/middleware/api.middleware.logging.go
package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	nuts "github.com/vaudience/go-nuts"
)

// CORSConfig lists the origins allowed to call the HTTP API
type CORSConfig struct {
	AllowedOrigins []string
}

type accessLogWriter struct{}

func (accessLogWriter) Write(p []byte) (int, error) {
	nuts.L.Infof("[HTTP] %s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	nuts.L.Errorf("[HTTP] Recovered from panic: %s", fmt.Sprint(v...))
}

func formatAccessLog(w io.Writer, p handlers.LogFormatterParams) {
	fmt.Fprintf(w, "%s %s %d %dB %s\n",
		p.Request.Method,
		p.URL.RequestURI(),
		p.StatusCode,
		p.Size,
		time.Since(p.TimeStamp).Round(time.Microsecond),
	)
}

// AccessLog logs every request through the shared logger
func AccessLog(next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(accessLogWriter{}, next, formatAccessLog)
}

// Recover turns handler panics into 500 responses
func Recover(next http.Handler) http.Handler {
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)(next)
}

// CORS allows browser dashboards on other origins to use the API
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
}

// Chain wraps h with recovery, access logging and CORS, outermost first
func Chain(h http.Handler, cors CORSConfig) http.Handler {
	return Recover(AccessLog(CORS(cors)(h)))
}
