package route

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/evergreen-ci/gimlet"
	"github.com/scrapedash/scrapedash"
)

// parsePagination reads the 1-indexed page and page size from the query.
// Sizes above the maximum are clamped.
func parsePagination(vals url.Values) (int, int, error) {
	page, err := positiveParam(vals, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := positiveParam(vals, "pageSize", scrapedash.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if pageSize > scrapedash.MaxPageSize {
		pageSize = scrapedash.MaxPageSize
	}
	return page, pageSize, nil
}

func positiveParam(vals url.Values, name string, def int) (int, error) {
	raw := vals.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "'" + name + "' must be a positive integer",
		}
	}
	return n, nil
}
