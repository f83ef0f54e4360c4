// Package storage provides the transactional persistence backends behind
// ordered collections: an in-memory store, bbolt, and SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/kilupskalvis/orderset/internal/models"
)

// Sentinel errors for expected conditions.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrReadOnly          = errors.New("read-only transaction")
	ErrTxDone            = errors.New("transaction already committed or rolled back")
)

// validName matches collection names. Names become SQL identifiers and bucket keys,
// so they are restricted to lowercase snake case.
var validName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateName rejects collection names that are not lowercase snake case.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// Backend is a transactional keyed store. Write transactions are serialized by
// the implementation; read transactions see a consistent committed snapshot.
type Backend interface {
	// EnsureCollection creates the storage for a collection if it does not exist.
	EnsureCollection(ctx context.Context, name string) error

	// Begin starts a transaction. Only one writable transaction runs at a time.
	Begin(ctx context.Context, writable bool) (Tx, error)

	// Close releases resources.
	Close() error
}

// Tx is a unit of work against a Backend. It must be finished with exactly
// one of Commit or Rollback and must not be shared between goroutines.
type Tx interface {
	// FindMany returns the records matching f, in no particular order.
	FindMany(collection string, f models.Filter) ([]*models.Record, error)
	// FindOne returns ErrNotFound if id is absent.
	FindOne(collection string, id int64) (*models.Record, error)
	// Count returns the number of records matching f.
	Count(collection string, f models.Filter) (int, error)
	// Insert assigns a fresh ID and timestamps and stores r.
	Insert(collection string, r *models.Record) (*models.Record, error)
	// UpdateOne rewrites the set fields of a record. Returns ErrNotFound if id is absent.
	UpdateOne(collection string, id int64, fields models.Fields) (*models.Record, error)
	// Delete removes a record. Returns ErrNotFound if id is absent.
	Delete(collection string, id int64) error

	// GetDocument returns ErrNotFound if no document is stored under key.
	GetDocument(key string) (*models.Document, error)
	// PutDocument creates or replaces the document stored under doc.Key.
	PutDocument(doc *models.Document) (*models.Document, error)

	Commit() error
	Rollback() error
}
