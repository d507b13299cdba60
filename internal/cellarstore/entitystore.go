package cellarstore

import (
	"fmt"

	"github.com/kroeg/cellar/internal/cache"
	"github.com/kroeg/cellar/internal/codec"
	"github.com/kroeg/cellar/internal/jsonld"
	"github.com/kroeg/cellar/internal/protocol"
	"github.com/kroeg/cellar/internal/quad"
	"github.com/kroeg/cellar/internal/statements"
)

// EntityStore is one handle onto a shared Connection: its own interning
// cache, its own quad-level view of the schema, borrowing the connection's
// prepared-statement registry.
type EntityStore struct {
	reg       *statements.Registry
	cache     *cache.Interning
	converter jsonld.Converter
}

// New returns an EntityStore handle over reg, with its own fresh interning
// cache and the given JSON-LD converter.
func New(reg *statements.Registry, converter jsonld.Converter) *EntityStore {
	return &EntityStore{reg: reg, cache: cache.New(), converter: converter}
}

// CacheSize reports the number of interned IRI/id pairs, exposed to the
// admin diagnostics surface.
func (s *EntityStore) CacheSize() int { return s.cache.Len() }

// Get resolves path, reads its quads, and converts them back into a
// Document. ok is false if the entity has no quads.
func (s *EntityStore) Get(path string) (doc jsonld.Document, ok bool, err error) {
	if err := s.cache.CacheURIs(s.reg, []string{path}); err != nil {
		return nil, false, err
	}
	pathID, _ := s.cache.ID(path)

	rows, err := execRows(s.reg.Get("select_quad"), []codec.Serializable{codec.Int32(pathID)})
	if err != nil {
		return nil, false, fmt.Errorf("cellarstore: get %q: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	dbQuads, err := decodeQuadRows(rows)
	if err != nil {
		return nil, false, err
	}

	idSet := quad.CollectQuadIDs(dbQuads)
	ids := make([]int32, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	if err := s.cache.CacheIDs(s.reg, ids); err != nil {
		return nil, false, err
	}

	strQuads := make([]quad.StringQuad, 0, len(dbQuads))
	for _, q := range dbQuads {
		sq, err := quad.TranslateQuad(s.cache, q)
		if err != nil {
			return nil, false, err
		}
		strQuads = append(strQuads, sq)
	}

	doc, err = s.converter.FromQuads(path, strQuads)
	if err != nil {
		return nil, false, fmt.Errorf("cellarstore: get %q: from quads: %w", path, err)
	}
	return doc, true, nil
}

// Put serialises doc via the converter and replaces path's entire graph
// with the resulting quads: delete then insert, not transactional across
// the pair but atomic from the caller's perspective within one request.
func (s *EntityStore) Put(path string, doc jsonld.Document) error {
	quads, err := s.converter.ToQuads(path, doc)
	if err != nil {
		return fmt.Errorf("cellarstore: put %q: to quads: %w", path, err)
	}

	uris := map[string]struct{}{path: {}}
	for _, q := range quads {
		uris[q.SubjectID] = struct{}{}
		uris[q.PredicateID] = struct{}{}
		switch q.Contents.Kind {
		case quad.ContentsID:
			uris[q.Contents.ID] = struct{}{}
		case quad.ContentsObject:
			uris[q.Contents.TypeID] = struct{}{}
		case quad.ContentsLanguageString:
			uris[quad.LangStringDatatype] = struct{}{}
		}
	}
	uriList := make([]string, 0, len(uris))
	for u := range uris {
		uriList = append(uriList, u)
	}
	if err := s.cache.CacheURIs(s.reg, uriList); err != nil {
		return err
	}

	pathID, _ := s.cache.ID(path)

	n := len(quads)
	quadIDs := make([]int32, n)
	subjectIDs := make([]int32, n)
	predicateIDs := make([]int32, n)
	attributeIDs := make([]*int32, n)
	objects := make([]*string, n)
	typeIDs := make([]*int32, n)
	languages := make([]*string, n)

	for i, q := range quads {
		quadIDs[i] = pathID
		subjectIDs[i], _ = s.cache.ID(q.SubjectID)
		predicateIDs[i], _ = s.cache.ID(q.PredicateID)

		switch q.Contents.Kind {
		case quad.ContentsID:
			id, _ := s.cache.ID(q.Contents.ID)
			attributeIDs[i] = &id
		case quad.ContentsObject:
			obj := q.Contents.Value
			objects[i] = &obj
			typeID, _ := s.cache.ID(q.Contents.TypeID)
			typeIDs[i] = &typeID
		case quad.ContentsLanguageString:
			obj := q.Contents.Value
			objects[i] = &obj
			lang := q.Contents.Language
			languages[i] = &lang
		}
	}

	if _, err := execRows(s.reg.Get("delete_quads"), []codec.Serializable{codec.Int32(pathID)}); err != nil {
		return fmt.Errorf("cellarstore: put %q: delete_quads: %w", path, err)
	}

	if n == 0 {
		return nil
	}

	params := []codec.Serializable{
		codec.Int32Array(quadIDs),
		codec.Int32Array(subjectIDs),
		codec.Int32Array(predicateIDs),
		codec.NullableInt32Array(attributeIDs),
		codec.NullableTextArray(objects),
		codec.NullableInt32Array(typeIDs),
		codec.NullableTextArray(languages),
	}
	if _, err := execRows(s.reg.Get("insert_quads"), params); err != nil {
		return fmt.Errorf("cellarstore: put %q: insert_quads: %w", path, err)
	}
	return nil
}

// decodeQuadRows parses select_quad's eight-column result shape into
// quad.DBQuad values.
func decodeQuadRows(rows []protocol.Row) ([]quad.DBQuad, error) {
	out := make([]quad.DBQuad, 0, len(rows))
	for _, r := range rows {
		var q quad.DBQuad
		var err error

		if q.ID, _, err = r.Int32(0); err != nil {
			return nil, err
		}
		if q.QuadID, _, err = r.Int32(1); err != nil {
			return nil, err
		}
		if q.SubjectID, _, err = r.Int32(2); err != nil {
			return nil, err
		}
		if q.PredicateID, _, err = r.Int32(3); err != nil {
			return nil, err
		}

		attrID, isNull, err := r.Int32(4)
		if err != nil {
			return nil, err
		}
		if !isNull {
			q.AttributeID = &attrID
		}

		object, isNull, err := r.Text(5)
		if err != nil {
			return nil, err
		}
		if !isNull {
			q.Object = &object
		}

		typeID, isNull, err := r.Int32(6)
		if err != nil {
			return nil, err
		}
		if !isNull {
			q.TypeID = &typeID
		}

		language, isNull, err := r.Text(7)
		if err != nil {
			return nil, err
		}
		if !isNull {
			q.Language = &language
		}

		out = append(out, q)
	}
	return out, nil
}
