// Package statements holds the fixed set of prepared statements the
// adapter parses once per connection, in a stable order, and the SQL text backing the schema.
package statements

import "github.com/kroeg/cellar/internal/protocol"

// names lists every statement in the exact parse order the connection prepares them in.
var names = []string{
	"upsert_attributes",
	"select_attributes",
	"select_quad",
	"insert_quads",
	"delete_quads",
	"insert_collection",
	"delete_collection",
	"select_collection",
	"select_collection_reverse",
	"select_collection_inverse",
	"find_collection",
	"queue_item_pop",
	"queue_item_put",
	"queue_depth",
}

// sql holds the exact SQL text for every statement, grounded on
// _examples/original_source/src/statements.rs. It differs from that source
// in three places: find_collection matches on object_id, queue_item_put
// also returns the new row's id, and queue_depth has no counterpart there.
var sql = map[string]string{
	"upsert_attributes": `
with new_rows as (
    insert into attribute (url)
    select * from unnest($1::text[])
    on conflict (url) do nothing
    returning id, url
)
select id, url from new_rows
union distinct
select id, url from attribute where url = any($1::text[])`,

	"select_attributes": `select id, url from attribute where id = any($1::int[])`,

	"select_quad": `select id, quad_id, subject_id, predicate_id, attribute_id, object, type_id, language
		from quad where quad_id = $1`,

	"insert_quads": `
insert into quad (quad_id, subject_id, predicate_id, attribute_id, object, type_id, language)
select * from unnest($1::int[], $2::int[], $3::int[], $4::int[], $5::text[], $6::int[], $7::text[])`,

	"delete_quads": `delete from quad where quad_id = $1`,

	"insert_collection": `insert into collection_item (collection_id, object_id) values ($1, $2)
		on conflict (collection_id, object_id) do nothing`,

	"delete_collection": `delete from collection_item where collection_id = $1 and object_id = $2`,

	"select_collection": `select id, collection_id, object_id from collection_item
		where collection_id = $1 and id >= $2 order by id asc limit $3`,

	"select_collection_reverse": `select id, collection_id, object_id from collection_item
		where collection_id = $1 and id <= $2 order by id desc limit $3`,

	"select_collection_inverse": `select id, collection_id, object_id from collection_item where object_id = $1`,

	"find_collection": `select id, collection_id, object_id from collection_item
		where collection_id = $1 and object_id = $2`,

	"queue_item_pop": `delete from queue_item where id = (select id from queue_item order by id limit 1)
		returning event, data`,

	"queue_item_put": `insert into queue_item (event, data) values ($1, $2) returning id`,

	// queue_depth backs the admin diagnostics surface; it is an addition
	// alongside the original fixed statement set.
	"queue_depth": `select count(*)::int from queue_item`,
}

// Registry holds every parsed Statement, keyed by name, for the lifetime of
// a Connection.
type Registry struct {
	byName map[string]*protocol.Statement
}

// Prepare parses every statement in names, in order, against conn.
func Prepare(conn *protocol.Connection) (*Registry, error) {
	r := &Registry{byName: make(map[string]*protocol.Statement, len(names))}
	for _, name := range names {
		stmt, err := conn.Parse(sql[name])
		if err != nil {
			return nil, err
		}
		r.byName[name] = stmt
	}
	return r, nil
}

// Get returns the parsed statement for name. It panics on an unknown name
// since the set of names is fixed and internal to this package's callers.
func (r *Registry) Get(name string) *protocol.Statement {
	stmt, ok := r.byName[name]
	if !ok {
		panic("statements: unknown statement " + name)
	}
	return stmt
}
