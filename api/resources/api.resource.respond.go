package resources

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/errors"
)

const maxBodyBytes = 1 << 20

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

type historyQuery struct {
	Limit int `schema:"limit"`
}

// getHistoryLimit returns the requested limit, falling back to 20 when it is
// missing, malformed or outside [1, 200].
func getHistoryLimit(r *http.Request) int {
	const (
		defaultLimit = 20
		maxLimit     = 200
	)
	var q historyQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		return defaultLimit
	}
	if q.Limit < 1 || q.Limit > maxLimit {
		return defaultLimit
	}
	return q.Limit
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
