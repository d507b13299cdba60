// Package quad implements the translation between stored quad rows and the
// abstract IRI-keyed quad model used by upper layers.
package quad

import "fmt"

// LangStringDatatype is the canonical RDF 1.1 datatype IRI used for
// language-tagged strings. Some RDF tooling still emits the
// non-canonical rdf-schema#langString value; this adapter always writes
// and expects the normative rdf-syntax-ns term.
const LangStringDatatype = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"

// DBQuad is one row of the `quad` table, with surrogate ids still
// unresolved.
type DBQuad struct {
	ID          int32
	QuadID      int32
	SubjectID   int32
	PredicateID int32
	AttributeID *int32
	Object      *string
	TypeID      *int32
	Language    *string
}

// ContentsKind discriminates the three DatabaseQuadContents variants.
type ContentsKind int

const (
	// ContentsID: the object position is itself an IRI (attribute_id set).
	ContentsID ContentsKind = iota
	// ContentsObject: a typed literal (object + type_id set).
	ContentsObject
	// ContentsLanguageString: a language-tagged string (object + language set).
	ContentsLanguageString
)

// Contents is the decoded object position of a quad.
type Contents struct {
	Kind       ContentsKind
	ID         int32  // ContentsID
	Value      string // ContentsObject / ContentsLanguageString
	TypeID     int32  // ContentsObject
	Language   string // ContentsLanguageString
}

// MalformedError reports a quad row that satisfies none of the three valid
// shapes, a schema invariant violation.
type MalformedError struct {
	QuadRowID int32
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("quad: row %d violates the attribute_id/object/type_id/language invariants", e.QuadRowID)
}

// DecodeContents applies the priority-ordered decode:
//  1. attribute_id set -> ContentsID.
//  2. object & language set, attribute_id unset -> ContentsLanguageString.
//  3. object & type_id set -> ContentsObject.
//  4. otherwise -> malformed.
func DecodeContents(q DBQuad) (Contents, error) {
	switch {
	case q.AttributeID != nil:
		return Contents{Kind: ContentsID, ID: *q.AttributeID}, nil

	case q.Object != nil && q.Language != nil && q.AttributeID == nil:
		return Contents{Kind: ContentsLanguageString, Value: *q.Object, Language: *q.Language}, nil

	case q.Object != nil && q.TypeID != nil:
		return Contents{Kind: ContentsObject, Value: *q.Object, TypeID: *q.TypeID}, nil

	default:
		return Contents{}, &MalformedError{QuadRowID: q.ID}
	}
}

// StringQuad is the in-memory, IRI-keyed boundary type upper layers consume.
type StringQuad struct {
	SubjectID   string
	PredicateID string
	Contents    StringContents
}

// StringContents mirrors Contents but with every id already resolved to an
// IRI string.
type StringContents struct {
	Kind     ContentsKind
	ID       string // ContentsID
	Value    string // ContentsObject / ContentsLanguageString
	TypeID   string // ContentsObject
	Language string // ContentsLanguageString
}

// Resolver looks up an already-cached IRI for a surrogate id. It is
// satisfied by *cache.Interning; declared here instead of imported to keep
// this package free of a dependency on the cache's statement-binding
// machinery.
type Resolver interface {
	URI(id int32) (string, bool)
}

// TranslateQuad converts a DBQuad into a StringQuad. Every id referenced
// must already have been resolved via CacheIDs; an unresolved id is a
// caller bug and is reported as an error rather than silently producing an
// empty string.
func TranslateQuad(resolver Resolver, q DBQuad) (StringQuad, error) {
	contents, err := DecodeContents(q)
	if err != nil {
		return StringQuad{}, err
	}

	subject, ok := resolver.URI(q.SubjectID)
	if !ok {
		return StringQuad{}, fmt.Errorf("quad: subject id %d not resolved", q.SubjectID)
	}
	predicate, ok := resolver.URI(q.PredicateID)
	if !ok {
		return StringQuad{}, fmt.Errorf("quad: predicate id %d not resolved", q.PredicateID)
	}

	sc := StringContents{Kind: contents.Kind, Value: contents.Value, Language: contents.Language}
	switch contents.Kind {
	case ContentsID:
		uri, ok := resolver.URI(contents.ID)
		if !ok {
			return StringQuad{}, fmt.Errorf("quad: object id %d not resolved", contents.ID)
		}
		sc.ID = uri
	case ContentsObject:
		typeURI, ok := resolver.URI(contents.TypeID)
		if !ok {
			return StringQuad{}, fmt.Errorf("quad: type id %d not resolved", contents.TypeID)
		}
		sc.TypeID = typeURI
	case ContentsLanguageString:
		sc.TypeID = LangStringDatatype
	}

	return StringQuad{SubjectID: subject, PredicateID: predicate, Contents: sc}, nil
}

// CollectQuadIDs returns the union of every surrogate id referenced by
// quads: quad_id, subject_id, predicate_id, and whichever of
// attribute_id/type_id is set.
func CollectQuadIDs(quads []DBQuad) map[int32]struct{} {
	ids := make(map[int32]struct{})
	for _, q := range quads {
		ids[q.QuadID] = struct{}{}
		ids[q.SubjectID] = struct{}{}
		ids[q.PredicateID] = struct{}{}
		if q.AttributeID != nil {
			ids[*q.AttributeID] = struct{}{}
		}
		if q.TypeID != nil {
			ids[*q.TypeID] = struct{}{}
		}
	}
	return ids
}
