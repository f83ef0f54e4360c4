package storage

import (
	"context"
	"sync"
	"time"

	"github.com/kilupskalvis/orderset/internal/models"
)

// Memory is an in-process Backend. Writers work on a copy-on-write snapshot that
// replaces the committed state on Commit. A writable transaction holds the write
// lock for its whole life, so writers are serialized and readers only ever see
// committed state.
type Memory struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

type memState struct {
	collections map[string]*memCollection
	documents   map[string]*models.Document
}

type memCollection struct {
	seq     int64
	records map[int64]*models.Record // stored records are never mutated in place
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		state: &memState{
			collections: make(map[string]*memCollection),
			documents:   make(map[string]*models.Document),
		},
		now: time.Now,
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		collections: make(map[string]*memCollection, len(s.collections)),
		documents:   make(map[string]*models.Document, len(s.documents)),
	}
	for name, coll := range s.collections {
		records := make(map[int64]*models.Record, len(coll.records))
		for id, r := range coll.records {
			records[id] = r
		}
		c.collections[name] = &memCollection{seq: coll.seq, records: records}
	}
	for k, d := range s.documents {
		c.documents[k] = d
	}
	return c
}

// EnsureCollection registers an empty collection if needed.
func (m *Memory) EnsureCollection(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.collections[name]; !ok {
		next := m.state.clone()
		next.collections[name] = &memCollection{records: make(map[int64]*models.Record)}
		m.state = next
	}
	return nil
}

// Begin starts a transaction. A writable transaction blocks until the previous
// writer finishes.
func (m *Memory) Begin(ctx context.Context, writable bool) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if writable {
		m.mu.Lock()
		return &memTx{m: m, writable: true, state: m.state.clone()}, nil
	}
	m.mu.RLock()
	return &memTx{m: m, state: m.state}, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

type memTx struct {
	m        *Memory
	writable bool
	done     bool
	state    *memState
}

func (tx *memTx) collection(name string) (*memCollection, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	c, ok := tx.state.collections[name]
	if !ok {
		return nil, ErrUnknownCollection
	}
	return c, nil
}

func (tx *memTx) checkWrite() error {
	if tx.done {
		return ErrTxDone
	}
	if !tx.writable {
		return ErrReadOnly
	}
	return nil
}

func (tx *memTx) FindMany(collection string, f models.Filter) ([]*models.Record, error) {
	c, err := tx.collection(collection)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Record, 0, len(c.records))
	for _, r := range c.records {
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (tx *memTx) FindOne(collection string, id int64) (*models.Record, error) {
	c, err := tx.collection(collection)
	if err != nil {
		return nil, err
	}
	r, ok := c.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (tx *memTx) Count(collection string, f models.Filter) (int, error) {
	c, err := tx.collection(collection)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range c.records {
		if f.Matches(r) {
			n++
		}
	}
	return n, nil
}

func (tx *memTx) Insert(collection string, r *models.Record) (*models.Record, error) {
	if err := tx.checkWrite(); err != nil {
		return nil, err
	}
	c, err := tx.collection(collection)
	if err != nil {
		return nil, err
	}
	c.seq++
	stored := r.Clone()
	stored.ID = c.seq
	now := tx.m.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	c.records[stored.ID] = stored
	return stored.Clone(), nil
}

func (tx *memTx) UpdateOne(collection string, id int64, fields models.Fields) (*models.Record, error) {
	if err := tx.checkWrite(); err != nil {
		return nil, err
	}
	c, err := tx.collection(collection)
	if err != nil {
		return nil, err
	}
	cur, ok := c.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.Clone()
	fields.Apply(next, tx.m.now())
	c.records[id] = next
	return next.Clone(), nil
}

func (tx *memTx) Delete(collection string, id int64) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	c, err := tx.collection(collection)
	if err != nil {
		return err
	}
	if _, ok := c.records[id]; !ok {
		return ErrNotFound
	}
	delete(c.records, id)
	return nil
}

func (tx *memTx) GetDocument(key string) (*models.Document, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	d, ok := tx.state.documents[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(d), nil
}

func (tx *memTx) PutDocument(doc *models.Document) (*models.Document, error) {
	if err := tx.checkWrite(); err != nil {
		return nil, err
	}
	stored := cloneDocument(doc)
	stored.UpdatedAt = tx.m.now()
	tx.state.documents[doc.Key] = stored
	return cloneDocument(stored), nil
}

func (tx *memTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	if !tx.writable {
		return ErrReadOnly
	}
	tx.m.state = tx.state
	tx.finish()
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	tx.finish()
	return nil
}

func (tx *memTx) finish() {
	tx.done = true
	if tx.writable {
		tx.m.mu.Unlock()
	} else {
		tx.m.mu.RUnlock()
	}
}

func cloneDocument(d *models.Document) *models.Document {
	c := *d
	if d.Body != nil {
		c.Body = append([]byte(nil), d.Body...)
	}
	return &c
}
