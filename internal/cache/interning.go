// Package cache implements the per-handle bidirectional IRI↔surrogate-id
// interning cache and its bulk resolvers.
package cache

import (
	"fmt"

	"github.com/kroeg/cellar/internal/codec"
	"github.com/kroeg/cellar/internal/statements"
)

// Interning is the bidirectional, additive-only, never-evicting cache of a
// single EntityStore handle. It is not safe for concurrent use; callers
// serialise through the owning handle.
type Interning struct {
	uriToID map[string]int32
	idToURI map[int32]string
}

// New returns an empty Interning cache.
func New() *Interning {
	return &Interning{
		uriToID: make(map[string]int32),
		idToURI: make(map[int32]string),
	}
}

// ID returns the surrogate id for uri, if already cached.
func (c *Interning) ID(uri string) (int32, bool) {
	id, ok := c.uriToID[uri]
	return id, ok
}

// URI returns the IRI for id, if already cached.
func (c *Interning) URI(id int32) (string, bool) {
	uri, ok := c.idToURI[id]
	return uri, ok
}

func (c *Interning) put(id int32, uri string) {
	c.uriToID[uri] = id
	c.idToURI[id] = uri
}

// Len reports the number of interned pairs, used by the admin diagnostics
// surface.
func (c *Interning) Len() int {
	return len(c.uriToID)
}

// CacheURIs resolves every uri in urls to a surrogate id, upserting any
// not already known via upsert_attributes. On return, every input url is
// present in the cache. Grounded on
// _examples/original_source/src/cellarentitystore.rs's cache_uris.
func (c *Interning) CacheURIs(reg *statements.Registry, urls []string) error {
	var missing []string
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		if _, ok := c.uriToID[u]; !ok {
			missing = append(missing, u)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	bound, err := reg.Get("upsert_attributes").Bind([]codec.Serializable{codec.TextArray(missing)})
	if err != nil {
		return fmt.Errorf("cache: upsert_attributes bind: %w", err)
	}
	query, err := bound.Execute()
	if err != nil {
		return fmt.Errorf("cache: upsert_attributes execute: %w", err)
	}
	rows, err := query.All()
	if err != nil {
		return fmt.Errorf("cache: upsert_attributes: %w", err)
	}

	for _, row := range rows {
		id, _, err := row.Int32(0)
		if err != nil {
			return fmt.Errorf("cache: upsert_attributes: decode id: %w", err)
		}
		url, _, err := row.Text(1)
		if err != nil {
			return fmt.Errorf("cache: upsert_attributes: decode url: %w", err)
		}
		c.put(id, url)
	}
	return nil
}

// CacheIDs resolves every id in ids to an IRI, via select_attributes for
// any not already known. Grounded on cellarentitystore.rs's cache_ids.
func (c *Interning) CacheIDs(reg *statements.Registry, ids []int32) error {
	var missing []int32
	seen := make(map[int32]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := c.idToURI[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	bound, err := reg.Get("select_attributes").Bind([]codec.Serializable{codec.Int32Array(missing)})
	if err != nil {
		return fmt.Errorf("cache: select_attributes bind: %w", err)
	}
	query, err := bound.Execute()
	if err != nil {
		return fmt.Errorf("cache: select_attributes execute: %w", err)
	}
	rows, err := query.All()
	if err != nil {
		return fmt.Errorf("cache: select_attributes: %w", err)
	}

	for _, row := range rows {
		id, _, err := row.Int32(0)
		if err != nil {
			return fmt.Errorf("cache: select_attributes: decode id: %w", err)
		}
		url, _, err := row.Text(1)
		if err != nil {
			return fmt.Errorf("cache: select_attributes: decode url: %w", err)
		}
		c.put(id, url)
	}
	return nil
}
