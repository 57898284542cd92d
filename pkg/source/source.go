// Package source reads raw BSON documents for shredding, either from a
// length-prefixed document stream (the format mongodump writes) or from a
// MongoDB collection cursor.
package source

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Source yields raw BSON documents one at a time.
type Source interface {
	// Next returns the next document, or io.EOF once the source is drained.
	// The returned bytes are only valid until the following call.
	Next(ctx context.Context) (bson.Raw, error)

	// Name identifies the source in logs and metrics.
	Name() string

	// Close releases the underlying stream or connection.
	Close() error
}
