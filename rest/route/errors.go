package route

import (
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/pkg/errors"
)

// errorResponder keeps the status of errors that carry one and reports
// everything else as an internal error.
func errorResponder(err error, format string, args ...any) gimlet.Responder {
	if resp, ok := errors.Cause(err).(gimlet.ErrorResponse); ok {
		return gimlet.MakeJSONErrorResponder(resp)
	}
	return gimlet.MakeJSONInternalErrorResponder(errors.Wrapf(err, format, args...))
}

func badRequest(err error) error {
	return gimlet.ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
	}
}
