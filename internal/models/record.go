// Package models holds the persisted shapes shared by the storage backends,
// the collection store, and the HTTP layer.
package models

import (
	"encoding/json"
	"time"
)

// Record is the stored form of one entry in an ordered collection
type Record struct {
	ID        int64           `json:"id"`
	Order     int             `json:"order"`
	IsActive  bool            `json:"isActive"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy so callers never alias backend state
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &c
}

// Filter narrows a collection read
type Filter struct {
	Active *bool // nil matches every record
}

// Matches reports whether r passes the filter
func (f Filter) Matches(r *Record) bool {
	if f.Active != nil && r.IsActive != *f.Active {
		return false
	}
	return true
}

// ActiveOnly is the filter used by public listings
func ActiveOnly() Filter {
	active := true
	return Filter{Active: &active}
}

// Fields lists the columns an UpdateOne call rewrites. Nil members are left untouched.
type Fields struct {
	Payload  json.RawMessage
	Order    *int
	IsActive *bool
}

// Apply merges the set fields into r and stamps UpdatedAt
func (f Fields) Apply(r *Record, now time.Time) {
	if f.Payload != nil {
		r.Payload = append(json.RawMessage(nil), f.Payload...)
	}
	if f.Order != nil {
		r.Order = *f.Order
	}
	if f.IsActive != nil {
		r.IsActive = *f.IsActive
	}
	r.UpdatedAt = now
}
