// Package querycompiler turns a vector of triple-pattern constraints into a
// single multi-way self-join SQL statement.
package querycompiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// QueryIDKind discriminates the four QueryID variants.
type QueryIDKind int

const (
	KindValue QueryIDKind = iota
	KindPlaceholder
	KindAny
	KindIgnore
)

// QueryID is one constrained position (subject, predicate, or an object-id
// position) in a triple pattern.
type QueryID struct {
	Kind        QueryIDKind
	Value       string   // KindValue
	Placeholder string   // KindPlaceholder
	Any         []string // KindAny
}

// Value constrains a position to a specific IRI.
func Value(iri string) QueryID { return QueryID{Kind: KindValue, Value: iri} }

// Placeholder binds a position to a named placeholder shared across the
// whole query.
func Placeholder(name string) QueryID { return QueryID{Kind: KindPlaceholder, Placeholder: name} }

// Any constrains a position to one of a set of IRIs. An empty set
// short-circuits the whole query to an empty result.
func Any(iris []string) QueryID { return QueryID{Kind: KindAny, Any: iris} }

// Ignore applies no constraint to a position.
func Ignore() QueryID { return QueryID{Kind: KindIgnore} }

// QueryObjectKind discriminates the three QueryObject variants.
type QueryObjectKind int

const (
	ObjectIsID QueryObjectKind = iota
	ObjectIsLiteral
	ObjectIsLanguageString
)

// QueryObject is the object-position constraint of a triple pattern.
type QueryObject struct {
	Kind     QueryObjectKind
	ID       QueryID // ObjectIsID
	Value    string  // ObjectIsLiteral / ObjectIsLanguageString
	TypeID   QueryID // ObjectIsLiteral
	Language string  // ObjectIsLanguageString
}

// ObjectID constrains the object position to be itself an IRI reference.
func ObjectID(id QueryID) QueryObject { return QueryObject{Kind: ObjectIsID, ID: id} }

// ObjectLiteral constrains the object position to a typed literal.
func ObjectLiteral(value string, typeID QueryID) QueryObject {
	return QueryObject{Kind: ObjectIsLiteral, Value: value, TypeID: typeID}
}

// ObjectLanguageString constrains the object position to a language-tagged
// string literal.
func ObjectLanguageString(value, language string) QueryObject {
	return QueryObject{Kind: ObjectIsLanguageString, Value: value, Language: language}
}

// QuadQuery is one triple-pattern row of the query.
type QuadQuery struct {
	Subject   QueryID
	Predicate QueryID
	Object    QueryObject
}

// column identifies one conceptual column of one aliased self-join row,
// e.g. "quad_0.subject_id".
type column string

func col(row int, name string) column {
	return column(fmt.Sprintf("quad_%d.%s", row, name))
}

// Plan is a compiled query: the SQL text, with every surrogate-id literal
// and any-set already embedded, and the placeholder names in result-column
// order, needed to interpret result rows.
type Plan struct {
	// ShortCircuit is true when an empty Any([]) makes the whole query
	// trivially empty; SQL and PlaceholderOrder are unset in that case.
	ShortCircuit bool

	SQL              string
	PlaceholderOrder []string // ascending key order, matches result column order
}

// RequiredURIs walks queries and returns every IRI appearing in a Value or
// Any constraint, which the caller must resolve via CacheURIs before
// calling Compile.
func RequiredURIs(queries []QuadQuery) []string {
	var uris []string
	collect := func(q QueryID) {
		switch q.Kind {
		case KindValue:
			uris = append(uris, q.Value)
		case KindAny:
			uris = append(uris, q.Any...)
		}
	}
	for _, qq := range queries {
		collect(qq.Subject)
		collect(qq.Predicate)
		if qq.Object.Kind == ObjectIsID {
			collect(qq.Object.ID)
		} else if qq.Object.Kind == ObjectIsLiteral {
			collect(qq.Object.TypeID)
		}
	}
	return uris
}

// Compile builds a self-join plan over the quad table for the given
// constraints. resolve must already have every IRI from RequiredURIs cached
// (callers resolve them first via CacheURIs); Compile does not itself talk
// to the database. Callers execute Plan.SQL and then resolve every returned
// id via CacheIDs.
//
// Because the surrogate-id literals are embedded directly as integers
// (never as user-controlled text), only the literal Object/LanguageString
// string values need SQL-escaping; that escaping happens here, at compile
// time, by doubling single quotes.
func Compile(queries []QuadQuery, resolve func(iri string) (int32, bool)) (Plan, error) {
	checks := map[column]string{}         // column -> IRI needing an id lookup at emit time
	checksAny := map[column][]string{}    // column -> IRIs
	literals := map[column]string{}       // column -> raw SQL literal (already escaped/quoted)
	placeholders := map[string][]column{} // name -> columns sharing it

	shortCircuit := false

	assignID := func(c column, q QueryID) {
		switch q.Kind {
		case KindValue:
			checks[c] = q.Value
		case KindPlaceholder:
			placeholders[q.Placeholder] = append(placeholders[q.Placeholder], c)
		case KindAny:
			if len(q.Any) == 0 {
				shortCircuit = true
				return
			}
			checksAny[c] = q.Any
		case KindIgnore:
			// no constraint
		}
	}

	for i, qq := range queries {
		assignID(col(i, "subject_id"), qq.Subject)
		assignID(col(i, "predicate_id"), qq.Predicate)

		switch qq.Object.Kind {
		case ObjectIsID:
			assignID(col(i, "attribute_id"), qq.Object.ID)
		case ObjectIsLiteral:
			literals[col(i, "object")] = sqlQuote(qq.Object.Value)
			assignID(col(i, "type_id"), qq.Object.TypeID)
		case ObjectIsLanguageString:
			literals[col(i, "object")] = sqlQuote(qq.Object.Value)
			literals[col(i, "language")] = sqlQuote(qq.Object.Language)
		}
	}

	if shortCircuit {
		return Plan{ShortCircuit: true}, nil
	}

	names := make([]string, 0, len(placeholders))
	for name := range placeholders {
		names = append(names, name)
	}
	sort.Strings(names)

	var from []string
	for i := range queries {
		from = append(from, fmt.Sprintf("quad quad_%d", i))
	}

	var where []string
	for _, name := range names {
		cols := placeholders[name]
		for i := 1; i < len(cols); i++ {
			where = append(where, fmt.Sprintf("%s = %s", cols[i-1], cols[i]))
		}
	}
	// stable iteration over checks/checksAny/literals for deterministic SQL
	for _, c := range sortedColumns(checks) {
		where = append(where, fmt.Sprintf("%s = %s", c, placeholderLiteral(c, checks, resolve)))
	}
	for _, c := range sortedColumnsAny(checksAny) {
		ids := make([]string, 0, len(checksAny[c]))
		for _, iri := range checksAny[c] {
			id, _ := resolve(iri)
			ids = append(ids, strconv.FormatInt(int64(id), 10))
		}
		where = append(where, fmt.Sprintf("%s IN (%s)", c, strings.Join(ids, ", ")))
	}
	for _, c := range sortedColumns(literals) {
		where = append(where, fmt.Sprintf("%s = %s", c, literals[c]))
	}

	selectCols := make([]string, 0, len(names))
	for _, name := range names {
		selectCols = append(selectCols, string(placeholders[name][0]))
	}

	sqlText := "select " + strings.Join(selectCols, ", ") + " from " + strings.Join(from, ", ") + " where true"
	if len(where) > 0 {
		sqlText += " and " + strings.Join(where, " and ")
	}

	return Plan{
		SQL:              sqlText,
		PlaceholderOrder: names,
	}, nil
}

func placeholderLiteral(c column, checks map[column]string, resolve func(string) (int32, bool)) string {
	id, _ := resolve(checks[c])
	return strconv.FormatInt(int64(id), 10)
}

func sortedColumns(m map[column]string) []column {
	cols := make([]column, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
	return cols
}

func sortedColumnsAny(m map[column][]string) []column {
	cols := make([]column, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
	return cols
}

// sqlQuote escapes a literal for direct embedding by doubling single
// quotes.
func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
