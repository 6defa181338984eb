package db

import (
	"strings"

	adb "github.com/mongodb/anser/db"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	if mongo.IsDuplicateKeyError(errors.Cause(err)) {
		return true
	}

	return strings.Contains(errors.Cause(err).Error(), "duplicate key")
}

// ResultsNotFound returns true if the error is a not-found error from a find
// or update.
func ResultsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, mongo.ErrNoDocuments) {
		return true
	}
	return adb.ResultsNotFound(errors.Cause(err))
}
