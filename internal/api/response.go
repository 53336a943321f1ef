package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/komponente/internal/component"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
	MinQty *int              `json:"min_qty,omitempty"`
}

// serviceError maps a component service error to an HTTP response.
func serviceError(w http.ResponseWriter, err error, what string) {
	var single *component.ValidationError
	var multi component.ValidationErrors

	switch {
	case errors.As(err, &multi):
		resp := validationResponse{Error: multi.Error(), Fields: map[string]string{}}
		for _, e := range multi {
			resp.Fields[e.Field] = e.Message
		}
		jsonResponse(w, http.StatusUnprocessableEntity, resp)
	case errors.As(err, &single):
		jsonResponse(w, http.StatusUnprocessableEntity, validationResponse{
			Error:  single.Error(),
			Fields: map[string]string{single.Field: single.Message},
			MinQty: single.MinQty,
		})
	case errors.Is(err, component.ErrNotFound):
		jsonError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, component.ErrForbidden):
		jsonError(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, component.ErrConflict):
		jsonError(w, http.StatusConflict, what+" was modified concurrently, try again")
	case errors.Is(err, component.ErrUnavailable):
		slog.Error("dependency unavailable", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		slog.Error("request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
