package collection

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kilupskalvis/orderset/internal/models"
)

// Record is a snapshot of one collection entry. Payload is decoded fresh on
// every read, so callers may modify it freely.
type Record[P any] struct {
	ID        int64
	Order     int
	IsActive  bool
	Payload   P
	CreatedAt time.Time
	UpdatedAt time.Time
}

func decode[P any](r *models.Record) (Record[P], error) {
	rec := Record[P]{
		ID:        r.ID,
		Order:     r.Order,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Payload, &rec.Payload); err != nil {
		return Record[P]{}, fmt.Errorf("decode payload of record %d: %w", r.ID, err)
	}
	return rec, nil
}

// MarshalJSON flattens the payload fields next to id, order, isActive,
// createdAt and updatedAt. Payloads that do not encode to a JSON object are
// nested under "payload".
func (r Record[P]) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		fields = map[string]json.RawMessage{"payload": data}
	}

	meta := map[string]any{
		"id":        r.ID,
		"order":     r.Order,
		"isActive":  r.IsActive,
		"createdAt": r.CreatedAt,
		"updatedAt": r.UpdatedAt,
	}
	for k, v := range meta {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		fields[k] = encoded
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reverses MarshalJSON: the bookkeeping keys fill the record and
// the remaining keys decode into the payload.
func (r *Record[P]) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var rec Record[P]
	targets := map[string]any{
		"id":        &rec.ID,
		"order":     &rec.Order,
		"isActive":  &rec.IsActive,
		"createdAt": &rec.CreatedAt,
		"updatedAt": &rec.UpdatedAt,
	}
	for k, dst := range targets {
		v, ok := fields[k]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		delete(fields, k)
	}

	payload, nested := fields["payload"]
	if !nested || len(fields) != 1 {
		var err error
		if payload, err = json.Marshal(fields); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	*r = rec
	return nil
}
