package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/kilupskalvis/orderset/internal/models"
	"github.com/kilupskalvis/orderset/internal/storage"
)

var validKey = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,127}$`)

// Documents stores singleton JSON documents under fixed keys, next to the
// ordered collections of the same backend.
type Documents struct {
	backend storage.Backend
}

// NewDocuments returns the document store of backend.
func NewDocuments(backend storage.Backend) *Documents {
	return &Documents{backend: backend}
}

// Get returns the document stored under key, or ErrNotFound.
func (d *Documents) Get(ctx context.Context, key string) (*models.Document, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	var doc *models.Document
	err := storage.View(ctx, d.backend, func(tx storage.Tx) error {
		var err error
		doc, err = tx.GetDocument(key)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: document %q", ErrNotFound, key)
		}
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return doc, nil
}

// Put creates or replaces the document stored under key.
func (d *Documents) Put(ctx context.Context, key string, body json.RawMessage) (*models.Document, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: document body is not valid JSON", ErrInvalidArgument)
	}
	var doc *models.Document
	err := storage.Update(ctx, d.backend, func(tx storage.Tx) error {
		var err error
		doc, err = tx.PutDocument(&models.Document{Key: key, Body: body})
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return doc, nil
}

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("%w: invalid document key %q", ErrInvalidArgument, key)
	}
	return nil
}
