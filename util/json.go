package util

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// ReadJSONInto decodes the whole reader into data and closes it.
func ReadJSONInto(r io.ReadCloser, data interface{}) error {
	defer r.Close()
	bytes, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading JSON body")
	}
	return errors.Wrap(json.Unmarshal(bytes, data), "decoding JSON")
}
