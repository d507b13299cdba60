package cellarstore

import (
	"fmt"

	"github.com/kroeg/cellar/internal/codec"
	"github.com/kroeg/cellar/internal/statements"
)

// QueueItem is one unit of queued work.
type QueueItem struct {
	// ID is only populated by Add; queue_item_pop's RETURNING clause yields
	// just (event, data), so a popped item's ID is always zero.
	ID    int32
	Event string
	Data  string
}

// Queue is a handle onto the queue_item table, independent of EntityStore
// since it shares no interning state; it only ever moves opaque event/data
// payloads.
type Queue struct {
	reg *statements.Registry
}

// NewQueue returns a Queue handle over reg.
func NewQueue(reg *statements.Registry) *Queue {
	return &Queue{reg: reg}
}

// GetItem pops the oldest queued item, or ok=false if the queue is empty.
func (q *Queue) GetItem() (item QueueItem, ok bool, err error) {
	rows, err := execRows(q.reg.Get("queue_item_pop"), nil)
	if err != nil {
		return QueueItem{}, false, fmt.Errorf("cellarstore: queue: get_item: %w", err)
	}
	if len(rows) == 0 {
		return QueueItem{}, false, nil
	}

	event, _, err := rows[0].Text(0)
	if err != nil {
		return QueueItem{}, false, err
	}
	data, _, err := rows[0].Text(1)
	if err != nil {
		return QueueItem{}, false, err
	}
	return QueueItem{Event: event, Data: data}, true, nil
}

// MarkSuccess is a no-op: a successfully processed item was already removed
// from the table by GetItem's pop.
func (q *Queue) MarkSuccess(item QueueItem) error { return nil }

// MarkFailure re-enqueues item for a later GetItem.
func (q *Queue) MarkFailure(item QueueItem) error {
	return q.add(item.Event, item.Data)
}

// QueueDepth reports the number of items currently queued, for the admin
// diagnostics surface.
func (q *Queue) QueueDepth() (int, error) {
	rows, err := execRows(q.reg.Get("queue_depth"), nil)
	if err != nil {
		return 0, fmt.Errorf("cellarstore: queue: queue_depth: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	depth, _, err := rows[0].Int32(0)
	if err != nil {
		return 0, err
	}
	return int(depth), nil
}

// Add enqueues a new item.
func (q *Queue) Add(event, data string) (QueueItem, error) {
	rows, err := execRows(q.reg.Get("queue_item_put"), []codec.Serializable{
		codec.Text(event), codec.Text(data),
	})
	if err != nil {
		return QueueItem{}, fmt.Errorf("cellarstore: queue: add: %w", err)
	}
	if len(rows) == 0 {
		return QueueItem{}, fmt.Errorf("cellarstore: queue: add: no id returned")
	}
	id, _, err := rows[0].Int32(0)
	if err != nil {
		return QueueItem{}, err
	}
	return QueueItem{ID: id, Event: event, Data: data}, nil
}

func (q *Queue) add(event, data string) error {
	_, err := q.Add(event, data)
	return err
}
