package cellarstore

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kroeg/cellar/internal/codec"
	"github.com/kroeg/cellar/internal/protocol"
)

// ErrUnknownCursor is returned by ReadCollection when the cursor string is
// neither absent, "before-N", nor "after-N".
var ErrUnknownCursor = fmt.Errorf("cellarstore: unknown collection cursor")

// DefaultCollectionCount is the page size used when ReadCollection's count
// argument is zero.
const DefaultCollectionCount = 30

// CollectionPointer is the result of any collection read: the object IRIs
// in the order the backing statement returned, plus cursors for paging
// further in either direction. A nil cursor means there is nothing more in
// that direction.
type CollectionPointer struct {
	Items  []string
	Before *string
	After  *string
}

type direction int

const (
	directionForward direction = iota
	directionReverse
)

// parseCursor parses the before-N / after-N cursor grammar.
func parseCursor(cursor string) (direction, int32, error) {
	switch {
	case cursor == "":
		return directionReverse, math.MaxInt32, nil
	case strings.HasPrefix(cursor, "before-"):
		n, err := strconv.ParseInt(strings.TrimPrefix(cursor, "before-"), 10, 32)
		if err != nil {
			return 0, 0, ErrUnknownCursor
		}
		return directionForward, int32(n), nil
	case strings.HasPrefix(cursor, "after-"):
		n, err := strconv.ParseInt(strings.TrimPrefix(cursor, "after-"), 10, 32)
		if err != nil {
			return 0, 0, ErrUnknownCursor
		}
		return directionReverse, int32(n), nil
	default:
		return 0, 0, ErrUnknownCursor
	}
}

func cursorString(prefix string, id int32) *string {
	s := fmt.Sprintf("%s-%d", prefix, id)
	return &s
}

// ReadCollection reads a page of the collection. count<=0 uses
// DefaultCollectionCount.
func (s *EntityStore) ReadCollection(path string, count int, cursor string) (CollectionPointer, error) {
	if count <= 0 {
		count = DefaultCollectionCount
	}

	dir, offset, err := parseCursor(cursor)
	if err != nil {
		return CollectionPointer{}, err
	}

	if err := s.cache.CacheURIs(s.reg, []string{path}); err != nil {
		return CollectionPointer{}, err
	}
	collectionID, _ := s.cache.ID(path)

	stmtName := "select_collection"
	if dir == directionReverse {
		stmtName = "select_collection_reverse"
	}

	rows, err := execRows(s.reg.Get(stmtName), []codec.Serializable{
		codec.Int32(collectionID),
		codec.Int32(offset),
		codec.Int64(int64(count)),
	})
	if err != nil {
		return CollectionPointer{}, fmt.Errorf("cellarstore: read_collection %q: %w", path, err)
	}

	return s.buildPointer(rows, dir, count)
}

// collectionItemID reads one Int32 column out of a collection_item row.
func collectionItemID(row protocol.Row, col int) (int32, error) {
	v, _, err := row.Int32(col)
	return v, err
}

func (s *EntityStore) buildPointer(rows []protocol.Row, dir direction, pageSize int) (CollectionPointer, error) {
	if len(rows) == 0 {
		return CollectionPointer{}, nil
	}

	itemIDs := make([]int32, len(rows))
	objectIDs := make([]int32, len(rows))
	for i, r := range rows {
		id, err := collectionItemID(r, 0)
		if err != nil {
			return CollectionPointer{}, err
		}
		objID, err := collectionItemID(r, 2)
		if err != nil {
			return CollectionPointer{}, err
		}
		itemIDs[i] = id
		objectIDs[i] = objID
	}

	if err := s.cache.CacheIDs(s.reg, objectIDs); err != nil {
		return CollectionPointer{}, err
	}

	items := make([]string, len(objectIDs))
	for i, id := range objectIDs {
		uri, _ := s.cache.URI(id)
		items[i] = uri
	}

	firstID, lastID := itemIDs[0], itemIDs[len(itemIDs)-1]

	// Cursors point just past the window in the direction of further
	// paging, so feeding one back advances rather than re-reading what was
	// just returned. When fewer rows came back than the requested page
	// size, that end of the collection has been reached and the cursor on
	// that side is omitted.
	full := len(rows) == pageSize

	var before, after *string
	switch dir {
	case directionReverse:
		before = cursorString("before", firstID+1)
		if full {
			after = cursorString("after", lastID-1)
		}
	case directionForward:
		after = cursorString("after", firstID-1)
		if full {
			before = cursorString("before", lastID+1)
		}
	}

	return CollectionPointer{Items: items, Before: before, After: after}, nil
}

// FindCollection checks presence
// plus cursors bracketing item's own position.
func (s *EntityStore) FindCollection(path, item string) (CollectionPointer, error) {
	if err := s.cache.CacheURIs(s.reg, []string{path, item}); err != nil {
		return CollectionPointer{}, err
	}
	collectionID, _ := s.cache.ID(path)
	objectID, _ := s.cache.ID(item)

	rows, err := execRows(s.reg.Get("find_collection"), []codec.Serializable{
		codec.Int32(collectionID),
		codec.Int32(objectID),
	})
	if err != nil {
		return CollectionPointer{}, fmt.Errorf("cellarstore: find_collection: %w", err)
	}
	if len(rows) == 0 {
		return CollectionPointer{}, nil
	}

	itemID, err := collectionItemID(rows[0], 0)
	if err != nil {
		return CollectionPointer{}, err
	}

	return CollectionPointer{
		Items:  []string{item},
		Before: cursorString("before", itemID+1),
		After:  cursorString("after", itemID-1),
	}, nil
}

// InsertCollection inserts item into collection; duplicate
// inserts are no-ops via ON CONFLICT DO NOTHING.
func (s *EntityStore) InsertCollection(path, item string) error {
	if err := s.cache.CacheURIs(s.reg, []string{path, item}); err != nil {
		return err
	}
	collectionID, _ := s.cache.ID(path)
	objectID, _ := s.cache.ID(item)

	if _, err := execRows(s.reg.Get("insert_collection"), []codec.Serializable{
		codec.Int32(collectionID), codec.Int32(objectID),
	}); err != nil {
		return fmt.Errorf("cellarstore: insert_collection: %w", err)
	}
	return nil
}

// RemoveCollection removes item from collection; idempotent.
func (s *EntityStore) RemoveCollection(path, item string) error {
	if err := s.cache.CacheURIs(s.reg, []string{path, item}); err != nil {
		return err
	}
	collectionID, _ := s.cache.ID(path)
	objectID, _ := s.cache.ID(item)

	if _, err := execRows(s.reg.Get("delete_collection"), []codec.Serializable{
		codec.Int32(collectionID), codec.Int32(objectID),
	}); err != nil {
		return fmt.Errorf("cellarstore: remove_collection: %w", err)
	}
	return nil
}

// ReadCollectionInverse finds
// every collection IRI that contains item. Cursors are always nil.
func (s *EntityStore) ReadCollectionInverse(item string) (CollectionPointer, error) {
	if err := s.cache.CacheURIs(s.reg, []string{item}); err != nil {
		return CollectionPointer{}, err
	}
	objectID, _ := s.cache.ID(item)

	rows, err := execRows(s.reg.Get("select_collection_inverse"), []codec.Serializable{codec.Int32(objectID)})
	if err != nil {
		return CollectionPointer{}, fmt.Errorf("cellarstore: read_collection_inverse: %w", err)
	}
	if len(rows) == 0 {
		return CollectionPointer{}, nil
	}

	collectionIDs := make([]int32, len(rows))
	for i, r := range rows {
		id, err := collectionItemID(r, 1)
		if err != nil {
			return CollectionPointer{}, err
		}
		collectionIDs[i] = id
	}
	if err := s.cache.CacheIDs(s.reg, collectionIDs); err != nil {
		return CollectionPointer{}, err
	}

	items := make([]string, len(collectionIDs))
	for i, id := range collectionIDs {
		uri, _ := s.cache.URI(id)
		items[i] = uri
	}
	return CollectionPointer{Items: items}, nil
}
