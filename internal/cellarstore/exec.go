// Package cellarstore implements the adapter's storage API surface: entity
// get/put, collection read/find/insert/remove/inverse-read, the query
// compiler's execution, and the queue store.
package cellarstore

import (
	"fmt"

	"github.com/kroeg/cellar/internal/codec"
	"github.com/kroeg/cellar/internal/protocol"
)

// execRows binds params against stmt, executes the resulting portal, and
// drains every row. Nearly every operation in this package is "bind one
// statement, read all its rows"; this is the shared plumbing.
func execRows(stmt *protocol.Statement, params []codec.Serializable) ([]protocol.Row, error) {
	bound, err := stmt.Bind(params)
	if err != nil {
		return nil, fmt.Errorf("cellarstore: bind: %w", err)
	}
	query, err := bound.Execute()
	if err != nil {
		return nil, fmt.Errorf("cellarstore: execute: %w", err)
	}
	rows, err := query.All()
	if err != nil {
		return nil, fmt.Errorf("cellarstore: rows: %w", err)
	}
	return rows, nil
}
