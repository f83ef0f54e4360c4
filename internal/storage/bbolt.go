package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kilupskalvis/orderset/internal/models"
	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

var bucketDocuments = []byte("documents")

// collectionBucket returns the bucket name for a collection.
func collectionBucket(name string) []byte {
	return []byte("c/" + name)
}

// Bbolt implements Backend on a single bbolt file. bbolt allows one writer at a
// time and gives every reader an MVCC snapshot.
type Bbolt struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenBbolt opens or creates a bbolt database at the given path.
func OpenBbolt(dbPath string) (*Bbolt, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", bucketDocuments, err)
	}

	return &Bbolt{db: db, now: time.Now}, nil
}

// Close releases the bbolt database.
func (b *Bbolt) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// EnsureCollection creates the collection bucket.
func (b *Bbolt) EnsureCollection(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(collectionBucket(name)); err != nil {
			return fmt.Errorf("create bucket for %s: %w", name, err)
		}
		return nil
	})
}

// Begin starts a bbolt transaction. Writable transactions block until the
// current writer commits or rolls back.
func (b *Bbolt) Begin(ctx context.Context, writable bool) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := b.db.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &bboltTx{tx: tx, now: b.now}, nil
}

type bboltTx struct {
	tx  *bolt.Tx
	now func() time.Time
}

func idKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func (t *bboltTx) bucket(collection string) (*bolt.Bucket, error) {
	b := t.tx.Bucket(collectionBucket(collection))
	if b == nil {
		return nil, ErrUnknownCollection
	}
	return b, nil
}

func (t *bboltTx) FindMany(collection string, f models.Filter) ([]*models.Record, error) {
	b, err := t.bucket(collection)
	if err != nil {
		return nil, err
	}
	var out []*models.Record
	err = b.ForEach(func(_, v []byte) error {
		var r models.Record
		if err := json.Unmarshal(v, &r); err != nil {
			return fmt.Errorf("unmarshal record: %w", err)
		}
		if f.Matches(&r) {
			out = append(out, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *bboltTx) FindOne(collection string, id int64) (*models.Record, error) {
	b, err := t.bucket(collection)
	if err != nil {
		return nil, err
	}
	data := b.Get(idKey(id))
	if data == nil {
		return nil, ErrNotFound
	}
	var r models.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &r, nil
}

func (t *bboltTx) Count(collection string, f models.Filter) (int, error) {
	if f.Active == nil {
		b, err := t.bucket(collection)
		if err != nil {
			return 0, err
		}
		return b.Stats().KeyN, nil
	}
	records, err := t.FindMany(collection, f)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (t *bboltTx) put(b *bolt.Bucket, r *models.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := b.Put(idKey(r.ID), data); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

func (t *bboltTx) Insert(collection string, r *models.Record) (*models.Record, error) {
	b, err := t.bucket(collection)
	if err != nil {
		return nil, err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return nil, t.translate(err)
	}
	stored := r.Clone()
	stored.ID = int64(seq)
	now := t.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if err := t.put(b, stored); err != nil {
		return nil, t.translate(err)
	}
	return stored, nil
}

func (t *bboltTx) UpdateOne(collection string, id int64, fields models.Fields) (*models.Record, error) {
	cur, err := t.FindOne(collection, id)
	if err != nil {
		return nil, err
	}
	b, err := t.bucket(collection)
	if err != nil {
		return nil, err
	}
	fields.Apply(cur, t.now())
	if err := t.put(b, cur); err != nil {
		return nil, t.translate(err)
	}
	return cur, nil
}

func (t *bboltTx) Delete(collection string, id int64) error {
	b, err := t.bucket(collection)
	if err != nil {
		return err
	}
	key := idKey(id)
	if b.Get(key) == nil {
		return ErrNotFound
	}
	return t.translate(b.Delete(key))
}

func (t *bboltTx) GetDocument(key string) (*models.Document, error) {
	data := t.tx.Bucket(bucketDocuments).Get([]byte(key))
	if data == nil {
		return nil, ErrNotFound
	}
	var d models.Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &d, nil
}

func (t *bboltTx) PutDocument(doc *models.Document) (*models.Document, error) {
	stored := *doc
	stored.UpdatedAt = t.now()
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if err := t.tx.Bucket(bucketDocuments).Put([]byte(doc.Key), data); err != nil {
		return nil, t.translate(err)
	}
	return &stored, nil
}

func (t *bboltTx) Commit() error {
	return t.translate(t.tx.Commit())
}

func (t *bboltTx) Rollback() error {
	return t.translate(t.tx.Rollback())
}

// translate maps bbolt's transaction-state errors onto this package's sentinels.
func (t *bboltTx) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, berrors.ErrTxNotWritable):
		return ErrReadOnly
	case errors.Is(err, berrors.ErrTxClosed):
		return ErrTxDone
	default:
		return err
	}
}
