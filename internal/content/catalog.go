package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/kilupskalvis/orderset/internal/collection"
	"github.com/kilupskalvis/orderset/internal/models"
	"github.com/kilupskalvis/orderset/internal/storage"
)

// Entry is a record whose payload is kept as raw JSON. It marshals to the
// same flat shape as the typed record it came from.
type Entry = collection.Record[json.RawMessage]

// Collection is the kind-independent face of a typed store. Create and Update
// take raw JSON request bodies and validate them against the kind's payload.
type Collection interface {
	Name() string
	List(ctx context.Context, f models.Filter) ([]Entry, error)
	Get(ctx context.Context, id int64) (Entry, error)
	Count(ctx context.Context, f models.Filter) (int, error)
	Create(ctx context.Context, body []byte) (Entry, error)
	Update(ctx context.Context, id int64, body []byte) (Entry, error)
	Delete(ctx context.Context, id int64) error
	Reorder(ctx context.Context, ids []int64) error
	Normalize(ctx context.Context) error
	Clear(ctx context.Context) (int, error)
}

type validator interface {
	Validate() error
}

type patch[P any] interface {
	collection.Patch[P]
	validator
}

// binders maps each builtin collection name to the constructor of its typed store.
var binders = map[string]func(context.Context, storage.Backend, string) (Collection, error){
	Achievements:         bind[Achievement, AchievementPatch],
	CoreStrengths:        bind[CoreStrength, CoreStrengthPatch],
	WhyChooseUs:          bind[WhyReason, WhyReasonPatch],
	FutureVisionGoals:    bind[VisionGoal, VisionGoalPatch],
	FutureVisionTimeline: bind[TimelineItem, TimelineItemPatch],
	AboutUsValues:        bind[AboutUsValue, AboutUsValuePatch],
	AboutUsTeamMembers:   bind[TeamMember, TeamMemberPatch],
	AboutTimeline:        bind[AboutTimelineItem, AboutTimelineItemPatch],
}

// Catalog is the set of collections served from one backend.
type Catalog struct {
	backend     storage.Backend
	documents   *collection.Documents
	collections map[string]Collection
	names       []string
}

// NewCatalog binds the named collections to backend. An empty list binds
// every builtin kind.
func NewCatalog(ctx context.Context, backend storage.Backend, names []string) (*Catalog, error) {
	if len(names) == 0 {
		names = BuiltinKinds()
	}
	c := &Catalog{
		backend:     backend,
		documents:   collection.NewDocuments(backend),
		collections: make(map[string]Collection, len(names)),
	}
	for _, name := range names {
		if _, dup := c.collections[name]; dup {
			continue
		}
		bindFn, ok := binders[name]
		if !ok {
			return nil, fmt.Errorf("unknown collection kind %q", name)
		}
		col, err := bindFn(ctx, backend, name)
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
		c.collections[name] = col
		c.names = append(c.names, name)
	}
	slices.Sort(c.names)
	return c, nil
}

// Lookup returns the collection bound under name.
func (c *Catalog) Lookup(name string) (Collection, bool) {
	col, ok := c.collections[name]
	return col, ok
}

// Names returns the bound collection names, sorted.
func (c *Catalog) Names() []string {
	return slices.Clone(c.names)
}

// Documents returns the singleton document store sharing the catalog's backend.
func (c *Catalog) Documents() *collection.Documents {
	return c.documents
}

// Ping opens and closes a read transaction on the backend.
func (c *Catalog) Ping(ctx context.Context) error {
	return storage.View(ctx, c.backend, func(storage.Tx) error { return nil })
}

type kind[P validator, Q patch[P]] struct {
	store *collection.Store[P]
}

func bind[P validator, Q patch[P]](ctx context.Context, backend storage.Backend, name string) (Collection, error) {
	s, err := collection.New[P](ctx, backend, name)
	if err != nil {
		return nil, err
	}
	return &kind[P, Q]{store: s}, nil
}

func (k *kind[P, Q]) Name() string { return k.store.Name() }

func (k *kind[P, Q]) List(ctx context.Context, f models.Filter) ([]Entry, error) {
	recs, err := k.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		e, err := toEntry(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (k *kind[P, Q]) Get(ctx context.Context, id int64) (Entry, error) {
	rec, err := k.store.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	return toEntry(rec)
}

func (k *kind[P, Q]) Count(ctx context.Context, f models.Filter) (int, error) {
	return k.store.Count(ctx, f)
}

// Create validates body as a full payload and appends it, or stores it at
// the body's explicit order.
func (k *kind[P, Q]) Create(ctx context.Context, body []byte) (Entry, error) {
	rest, order, active, err := splitBody(body)
	if err != nil {
		return Entry{}, err
	}
	var p P
	if err := decodeStrict(rest, &p); err != nil {
		return Entry{}, invalid(err)
	}
	if err := p.Validate(); err != nil {
		return Entry{}, invalid(err)
	}

	var opts []collection.InsertOption
	if active != nil {
		opts = append(opts, collection.WithActive(*active))
	}
	if order != nil {
		opts = append(opts, collection.WithOrder(*order))
	}
	rec, err := k.store.Insert(ctx, p, opts...)
	if err != nil {
		return Entry{}, err
	}
	return toEntry(rec)
}

// Update validates body as a partial payload and merges it into the record.
func (k *kind[P, Q]) Update(ctx context.Context, id int64, body []byte) (Entry, error) {
	rest, order, active, err := splitBody(body)
	if err != nil {
		return Entry{}, err
	}
	change := collection.Change[P]{Order: order, IsActive: active}
	if !bytes.Equal(rest, []byte("{}")) {
		var q Q
		if err := decodeStrict(rest, &q); err != nil {
			return Entry{}, invalid(err)
		}
		if err := q.Validate(); err != nil {
			return Entry{}, invalid(err)
		}
		change.Patch = q
	}
	rec, err := k.store.Update(ctx, id, change)
	if err != nil {
		return Entry{}, err
	}
	return toEntry(rec)
}

func (k *kind[P, Q]) Delete(ctx context.Context, id int64) error {
	return k.store.Delete(ctx, id)
}

func (k *kind[P, Q]) Reorder(ctx context.Context, ids []int64) error {
	return k.store.Reorder(ctx, ids)
}

func (k *kind[P, Q]) Normalize(ctx context.Context) error {
	return k.store.Normalize(ctx)
}

func (k *kind[P, Q]) Clear(ctx context.Context) (int, error) {
	return k.store.Clear(ctx)
}

func toEntry[P any](r collection.Record[P]) (Entry, error) {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encode payload of record %d: %w", r.ID, err)
	}
	return Entry{
		ID:        r.ID,
		Order:     r.Order,
		IsActive:  r.IsActive,
		Payload:   data,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// splitBody separates the bookkeeping keys order and isActive from the
// payload fields of a JSON object body. Null values count as absent.
func splitBody(body []byte) (rest []byte, order *int, active *bool, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, nil, nil, invalid(fmt.Errorf("body must be a JSON object: %w", err))
	}
	if fields == nil {
		return nil, nil, nil, invalid(errors.New("body must be a JSON object"))
	}

	if v, ok := fields["order"]; ok {
		delete(fields, "order")
		if string(v) != "null" {
			order = new(int)
			if err := json.Unmarshal(v, order); err != nil {
				return nil, nil, nil, invalid(errors.New("order must be an integer"))
			}
		}
	}
	if v, ok := fields["isActive"]; ok {
		delete(fields, "isActive")
		if string(v) != "null" {
			active = new(bool)
			if err := json.Unmarshal(v, active); err != nil {
				return nil, nil, nil, invalid(errors.New("isActive must be a boolean"))
			}
		}
	}

	rest, err = json.Marshal(fields)
	return rest, order, active, err
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", collection.ErrInvalidArgument, err)
}
