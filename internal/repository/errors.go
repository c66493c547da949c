package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned by both stores when a record does not exist
var ErrNotFound = errors.New("record not found")

// ErrStatusChanged is returned when a conditional update finds the record
// in a different status than expected
var ErrStatusChanged = errors.New("record status changed")

// notFound maps driver "no documents" errors to ErrNotFound
func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
