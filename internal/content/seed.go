package content

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Fixture is a seed file: ordered items per collection plus singleton documents.
//
//	collections:
//	  achievements:
//	    - title: Premium Cement Certification
//	      description: ISO 9001:2015 certified cement
//	      year: 2024
//	documents:
//	  future-vision:
//	    statement: ...
//
// Every item field other than order and isActive is a string, so unquoted
// numbers, booleans and dates in items are read as their text.
type Fixture struct {
	Collections map[string][]map[string]any `yaml:"collections"`
	Documents   map[string]any              `yaml:"documents"`
}

// LoadFixture reads a YAML seed file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes YAML seed data.
func ParseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fx, nil
}

// SeedResult reports how one collection was seeded.
type SeedResult struct {
	Collection string
	Removed    int
	Inserted   int
}

// Seed loads fx into the catalog. Collections are seeded concurrently, items
// within a collection in file order so their orders follow the file. With
// replace set, each seeded collection is cleared first. Documents are written
// after every collection succeeded.
func (c *Catalog) Seed(ctx context.Context, fx *Fixture, replace bool) ([]SeedResult, error) {
	names := make([]string, 0, len(fx.Collections))
	for name := range fx.Collections {
		if _, ok := c.Lookup(name); !ok {
			return nil, fmt.Errorf("fixture names unknown collection %q", name)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	results := make([]SeedResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		col, _ := c.Lookup(name)
		items := fx.Collections[name]
		g.Go(func() error {
			res := SeedResult{Collection: name}
			if replace {
				n, err := col.Clear(gctx)
				if err != nil {
					return fmt.Errorf("clear %s: %w", name, err)
				}
				res.Removed = n
			}
			for j, item := range items {
				body, err := json.Marshal(itemFields(item))
				if err != nil {
					return fmt.Errorf("%s item %d: %w", name, j, err)
				}
				if _, err := col.Create(gctx, body); err != nil {
					return fmt.Errorf("%s item %d: %w", name, j, err)
				}
				res.Inserted++
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for key, body := range fx.Documents {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", key, err)
		}
		if _, err := c.documents.Put(ctx, key, data); err != nil {
			return nil, fmt.Errorf("document %s: %w", key, err)
		}
	}
	return results, nil
}

// itemFields renders the scalar payload values of a fixture item as strings.
func itemFields(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		if k == "order" || k == "isActive" {
			out[k] = v
			continue
		}
		switch v := v.(type) {
		case int:
			out[k] = strconv.Itoa(v)
		case int64:
			out[k] = strconv.FormatInt(v, 10)
		case uint64:
			out[k] = strconv.FormatUint(v, 10)
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(v)
		case time.Time:
			if v.Equal(v.Truncate(24 * time.Hour)) {
				out[k] = v.Format(time.DateOnly)
			} else {
				out[k] = v.Format(time.RFC3339)
			}
		default:
			out[k] = v
		}
	}
	return out
}
