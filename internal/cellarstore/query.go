package cellarstore

import (
	"fmt"

	"github.com/kroeg/cellar/internal/protocol"
	"github.com/kroeg/cellar/internal/querycompiler"
)

// Query compiles queries into a single
// self-join statement, execute it ad hoc against conn (it isn't one of the
// registry's fixed statements since its SQL text depends on the query
// shape), and resolve every returned surrogate id back to an IRI.
//
// The result is one map per query row, from placeholder name to the IRI
// bound to it in that row.
func (s *EntityStore) Query(conn *protocol.Connection, queries []querycompiler.QuadQuery) ([]map[string]string, error) {
	// Compile returns the short-circuit plan before it consults resolve, so
	// an empty Any set is detected here before any database round trip.
	if plan, _ := querycompiler.Compile(queries, s.cache.ID); plan.ShortCircuit {
		return nil, nil
	}

	if err := s.cache.CacheURIs(s.reg, querycompiler.RequiredURIs(queries)); err != nil {
		return nil, err
	}

	plan, err := querycompiler.Compile(queries, s.cache.ID)
	if err != nil {
		return nil, fmt.Errorf("cellarstore: query: compile: %w", err)
	}
	if plan.ShortCircuit {
		return nil, nil
	}

	stmt, err := conn.Parse(plan.SQL)
	if err != nil {
		return nil, fmt.Errorf("cellarstore: query: parse: %w", err)
	}
	bound, err := stmt.Bind(nil)
	if err != nil {
		return nil, fmt.Errorf("cellarstore: query: bind: %w", err)
	}
	query, err := bound.Execute()
	if err != nil {
		return nil, fmt.Errorf("cellarstore: query: execute: %w", err)
	}
	rows, err := query.All()
	if err != nil {
		return nil, fmt.Errorf("cellarstore: query: rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Gather every surrogate id across every row and column before
	// resolving, so CacheIDs makes one round trip regardless of result size.
	ids := make([]int32, 0, len(rows)*len(plan.PlaceholderOrder))
	rowIDs := make([][]int32, len(rows))
	for r, row := range rows {
		rowIDs[r] = make([]int32, len(plan.PlaceholderOrder))
		for c := range plan.PlaceholderOrder {
			id, _, err := row.Int32(c)
			if err != nil {
				return nil, fmt.Errorf("cellarstore: query: decode row %d col %d: %w", r, c, err)
			}
			rowIDs[r][c] = id
			ids = append(ids, id)
		}
	}
	if err := s.cache.CacheIDs(s.reg, ids); err != nil {
		return nil, err
	}

	results := make([]map[string]string, len(rows))
	for r, cols := range rowIDs {
		result := make(map[string]string, len(plan.PlaceholderOrder))
		for c, name := range plan.PlaceholderOrder {
			uri, _ := s.cache.URI(cols[c])
			result[name] = uri
		}
		results[r] = result
	}
	return results, nil
}
