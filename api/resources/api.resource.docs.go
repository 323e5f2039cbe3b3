package resources

import (
	"net/http"

	"github.com/swaggo/swag"

	"github.com/pcdvisual/telemetry-hub/internal/errors"
)

// DocHandlers serves the registered API documentation
type DocHandlers struct{}

// GetDoc writes the swagger document
func (h *DocHandlers) GetDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		respondWithError(w, errors.NewNotFoundError("api documentation not registered", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
