// Package collection implements ordered resource sets: named collections whose
// records carry an integer order, read back sorted by (order, id), and
// reordered in bulk inside a single backend transaction.
//
// A Store holds no mutable state of its own. Every guarantee about concurrent
// writers comes from the storage.Backend transaction it runs in.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/kilupskalvis/orderset/internal/models"
	"github.com/kilupskalvis/orderset/internal/storage"
)

// Patch is a typed partial update for payloads of type P.
type Patch[P any] interface {
	Apply(p *P)
}

// Change describes an Update. Nil members are left untouched.
type Change[P any] struct {
	Patch    Patch[P]
	Order    *int // set directly; siblings are not renumbered
	IsActive *bool
}

type insertConfig struct {
	active bool
	order  *int
}

// InsertOption configures an Insert.
type InsertOption func(*insertConfig)

// WithActive sets the initial active flag. Records are active by default.
func WithActive(active bool) InsertOption {
	return func(c *insertConfig) {
		c.active = active
	}
}

// WithOrder stores the record at order instead of appending it. Like a
// direct order update, it may collide with a sibling's order.
func WithOrder(order int) InsertOption {
	return func(c *insertConfig) {
		c.order = &order
	}
}

// Store is an ordered collection of payloads of type P.
type Store[P any] struct {
	name    string
	backend storage.Backend
}

// New binds a Store to the named collection, creating its storage if needed.
func New[P any](ctx context.Context, backend storage.Backend, name string) (*Store[P], error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := backend.EnsureCollection(ctx, name); err != nil {
		return nil, translate(fmt.Errorf("ensure collection %s: %w", name, err))
	}
	return &Store[P]{name: name, backend: backend}, nil
}

// Name returns the collection name.
func (s *Store[P]) Name() string {
	return s.name
}

// List returns the records matching f sorted by order, then id.
func (s *Store[P]) List(ctx context.Context, f models.Filter) ([]Record[P], error) {
	var raw []*models.Record
	err := storage.View(ctx, s.backend, func(tx storage.Tx) error {
		var err error
		raw, err = tx.FindMany(s.name, f)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	sortRecords(raw)
	out := make([]Record[P], 0, len(raw))
	for _, r := range raw {
		rec, err := decode[P](r)
		if err != nil {
			return nil, translate(err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of records matching f.
func (s *Store[P]) Count(ctx context.Context, f models.Filter) (int, error) {
	var n int
	err := storage.View(ctx, s.backend, func(tx storage.Tx) error {
		var err error
		n, err = tx.Count(s.name, f)
		return err
	})
	return n, translate(err)
}

// Get returns a single record, or ErrNotFound.
func (s *Store[P]) Get(ctx context.Context, id int64) (Record[P], error) {
	var raw *models.Record
	err := storage.View(ctx, s.backend, func(tx storage.Tx) error {
		var err error
		raw, err = tx.FindOne(s.name, id)
		if err != nil {
			return wrapNotFound(err, id)
		}
		return nil
	})
	if err != nil {
		return Record[P]{}, translate(err)
	}
	rec, err := decode[P](raw)
	return rec, translate(err)
}

// Insert appends payload to the collection. The new record's order equals the
// collection size at the time of the insert unless WithOrder is given.
// Insert is not idempotent.
func (s *Store[P]) Insert(ctx context.Context, payload P, opts ...InsertOption) (Record[P], error) {
	cfg := insertConfig{active: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.order != nil && *cfg.order < 0 {
		return Record[P]{}, fmt.Errorf("%w: order must be non-negative, got %d", ErrInvalidArgument, *cfg.order)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Record[P]{}, fmt.Errorf("%w: encode payload: %v", ErrInvalidArgument, err)
	}
	r := &models.Record{IsActive: cfg.active, Payload: data}

	var stored *models.Record
	err = storage.Update(ctx, s.backend, func(tx storage.Tx) error {
		if cfg.order != nil {
			r.Order = *cfg.order
		} else {
			n, err := tx.Count(s.name, models.Filter{})
			if err != nil {
				return err
			}
			r.Order = n
		}
		var err error
		stored, err = tx.Insert(s.name, r)
		return err
	})
	if err != nil {
		return Record[P]{}, translate(err)
	}
	rec, err := decode[P](stored)
	return rec, translate(err)
}

// Update merges c into the record. An explicit order is written as given and
// may collide with a sibling's order until the next full Reorder.
func (s *Store[P]) Update(ctx context.Context, id int64, c Change[P]) (Record[P], error) {
	if c.Order != nil && *c.Order < 0 {
		return Record[P]{}, fmt.Errorf("%w: order must be non-negative, got %d", ErrInvalidArgument, *c.Order)
	}

	var stored *models.Record
	err := storage.Update(ctx, s.backend, func(tx storage.Tx) error {
		fields := models.Fields{Order: c.Order, IsActive: c.IsActive}

		if c.Patch != nil {
			cur, err := tx.FindOne(s.name, id)
			if err != nil {
				return wrapNotFound(err, id)
			}
			var payload P
			if err := json.Unmarshal(cur.Payload, &payload); err != nil {
				return fmt.Errorf("decode payload of record %d: %w", id, err)
			}
			c.Patch.Apply(&payload)
			if fields.Payload, err = json.Marshal(payload); err != nil {
				return fmt.Errorf("encode payload of record %d: %w", id, err)
			}
		}

		var err error
		stored, err = tx.UpdateOne(s.name, id, fields)
		return wrapNotFound(err, id)
	})
	if err != nil {
		return Record[P]{}, translate(err)
	}
	rec, err := decode[P](stored)
	return rec, translate(err)
}

// Delete removes a record. Surviving records keep their order values.
func (s *Store[P]) Delete(ctx context.Context, id int64) error {
	err := storage.Update(ctx, s.backend, func(tx storage.Tx) error {
		return wrapNotFound(tx.Delete(s.name, id), id)
	})
	return translate(err)
}

// Reorder sets order = i on the record ids[i], for every i, in one transaction.
// Either every listed record is updated or none is. Records not listed keep
// their order; pass the full id set to get a contiguous 0..n-1 ordering.
func (s *Store[P]) Reorder(ctx context.Context, ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %d in reorder", ErrInvalidArgument, id)
		}
		seen[id] = struct{}{}
	}
	if len(ids) == 0 {
		return nil
	}

	err := storage.Update(ctx, s.backend, func(tx storage.Tx) error {
		for i, id := range ids {
			order := i
			if _, err := tx.UpdateOne(s.name, id, models.Fields{Order: &order}); err != nil {
				return wrapNotFound(err, id)
			}
		}
		return nil
	})
	return translate(err)
}

// Normalize compacts the collection's order values to 0..n-1, keeping the
// current (order, id) sequence. Used after deletes leave gaps.
func (s *Store[P]) Normalize(ctx context.Context) error {
	err := storage.Update(ctx, s.backend, func(tx storage.Tx) error {
		raw, err := tx.FindMany(s.name, models.Filter{})
		if err != nil {
			return err
		}
		sortRecords(raw)
		for i, r := range raw {
			if r.Order == i {
				continue
			}
			order := i
			if _, err := tx.UpdateOne(s.name, r.ID, models.Fields{Order: &order}); err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}

// Clear deletes every record in one transaction and returns how many were removed.
func (s *Store[P]) Clear(ctx context.Context) (int, error) {
	var n int
	err := storage.Update(ctx, s.backend, func(tx storage.Tx) error {
		raw, err := tx.FindMany(s.name, models.Filter{})
		if err != nil {
			return err
		}
		for _, r := range raw {
			if err := tx.Delete(s.name, r.ID); err != nil {
				return err
			}
		}
		n = len(raw)
		return nil
	})
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func wrapNotFound(err error, id int64) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFound(id)
	}
	return err
}

// sortRecords orders records by order ascending, breaking ties by id.
func sortRecords(rs []*models.Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Order != rs[j].Order {
			return rs[i].Order < rs[j].Order
		}
		return rs[i].ID < rs[j].ID
	})
}
