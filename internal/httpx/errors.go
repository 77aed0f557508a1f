package httpx

import (
	"errors"
	"log"
	"net/http"

	"github.com/bookiez/backend/internal/apperr"
)

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError translates err into a JSON error response. Unclassified
// errors are logged and reported as a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		WriteMessage(w, status, "Internal server error")
		return
	}

	body := map[string]interface{}{"message": apperr.Message(err)}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body["errors"] = ve.Fields
	}
	WriteJSON(w, status, body)
}
