package httpx

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/bookiez/backend/internal/apperr"
	"github.com/bookiez/backend/internal/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit within int64 for any accepted limit.
	MaxPage = math.MaxInt64 / MaxLimit
)

// ParsePage reads page and limit from the query string. page defaults to 1
// and must be within [1, MaxPage]; limit defaults to DefaultLimit and must
// be within [1, MaxLimit].
func ParsePage(r *http.Request) (models.Page, error) {
	q := r.URL.Query()
	var fields []apperr.FieldError

	page := int64(1)
	if v := q.Get("page"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 || n > MaxPage {
			fields = append(fields, apperr.FieldError{Field: "page", Message: fmt.Sprintf("page must be an integer between 1 and %d", int64(MaxPage))})
		} else {
			page = n
		}
	}

	limit := int64(DefaultLimit)
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 || n > MaxLimit {
			fields = append(fields, apperr.FieldError{Field: "limit", Message: "limit must be an integer between 1 and 100"})
		} else {
			limit = n
		}
	}

	if len(fields) > 0 {
		return models.Page{}, &apperr.ValidationError{Fields: fields}
	}
	return models.Page{Page: page, Limit: limit}, nil
}
