package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/amasui/aniarr/internal/controllers"
	"github.com/amasui/aniarr/internal/models"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error body, mapping known sentinel errors to
// their status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, controllers.ErrNoSession),
		errors.Is(err, controllers.ErrNoReconcileSession),
		errors.Is(err, controllers.ErrUnknownCandidate):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateEpisode),
		errors.Is(err, controllers.ErrScrapeRunning),
		errors.Is(err, controllers.ErrCommitInFlight),
		errors.Is(err, controllers.ErrAlreadyImported):
		status = http.StatusConflict
	case errors.Is(err, controllers.ErrNotPaused),
		errors.Is(err, controllers.ErrTitleSkipped):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, controllers.ErrValidation):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeBadRequest writes a 400 with a plain message
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

// pathID parses the {id} path segment as an unsigned integer
func pathID(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(r.PathValue(name), 10, 64)
}

// queryInt parses an integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}
