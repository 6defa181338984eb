package util

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ReadFromYAMLFile unmarshals the YAML file fn into data.
func ReadFromYAMLFile(fn string, data interface{}) error {
	if _, err := os.Stat(fn); os.IsNotExist(err) {
		return errors.Errorf("file '%s' does not exist", fn)
	}

	bytes, err := os.ReadFile(fn)
	if err != nil {
		return errors.Wrapf(err, "reading file '%s'", fn)
	}

	return errors.Wrapf(yaml.Unmarshal(bytes, data), "parsing YAML file '%s'", fn)
}

// WriteYAMLFile marshals data and writes it to fn, readable only by the
// current user.
func WriteYAMLFile(fn string, data interface{}) error {
	bytes, err := yaml.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshalling YAML")
	}

	return errors.Wrapf(os.WriteFile(fn, bytes, 0600), "writing file '%s'", fn)
}
