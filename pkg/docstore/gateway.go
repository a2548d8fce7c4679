// Package docstore defines the document store contract the field survey engine writes through,
// together with a MongoDB implementation and an in-memory implementation.
//
// Stores enforce the unique indexes they are created with. A violated unique index and a failed
// update expectation both surface as ErrConflict, a missing document as ErrNotFound.
package docstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document conflict")
)

// SortField orders list results by a single key.
type SortField struct {
	Key  string
	Desc bool
}

// Query selects documents from a collection. Zero Limit means no limit.
type Query struct {
	Filter bson.M
	Sort   []SortField
	Limit  int64
	Offset int64
}

// Index declares a collection index. Unique indexes with a PartialFilter only apply to documents
// matching the filter (equality conditions).
type Index struct {
	Collection    string
	Name          string
	Keys          []string
	Unique        bool
	PartialFilter bson.M
}

type Gateway interface {
	// List decodes the matching documents into out, which must be a pointer to a slice.
	List(ctx context.Context, collection string, query Query, out any) error
	Count(ctx context.Context, collection string, filter bson.M) (int64, error)
	Get(ctx context.Context, collection string, id string, out any) error
	// Create inserts doc and returns its id. Documents without an "_id" get a generated one.
	Create(ctx context.Context, collection string, doc any) (string, error)
	// Update applies patch ($set semantics) to the document with the given id if it matches
	// expect, and decodes the updated document into out when out is not nil.
	Update(ctx context.Context, collection string, id string, expect bson.M, patch bson.M, out any) error
	Close(ctx context.Context) error
}

// IsNotFound reports whether err means the requested document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a unique index violation or a failed update expectation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

var (
	_ Gateway = (*MemoryStore)(nil)
	_ Gateway = (*MongoStore)(nil)
)
