package util

import (
	"io"
	"net/http"

	"github.com/pkg/errors"
)

const maxRequestSize = 1024 * 1024 // 1 MB

type requestReader struct {
	req *http.Request
	*io.LimitedReader
}

// NewRequestReader returns an io.ReadCloser for the body of an
// *http.Request that stops reading after one megabyte. Task definitions and
// role requests are small, so anything larger is truncated.
func NewRequestReader(req *http.Request) io.ReadCloser {
	return &requestReader{
		req: req,
		LimitedReader: &io.LimitedReader{
			R: req.Body,
			N: maxRequestSize,
		},
	}
}

func (r *requestReader) Close() error {
	return errors.WithStack(r.req.Body.Close())
}
