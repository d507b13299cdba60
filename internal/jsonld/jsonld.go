// Package jsonld defines the seam between the entity store and a JSON-LD
// to RDF quad translation library. Production deployments plug in a real
// processor; this package also ships a minimal reference Converter, good
// enough for tests, that only understands flat predicates whose values are
// strings or {"@id": ...} references.
package jsonld

import (
	"fmt"

	"github.com/kroeg/cellar/internal/quad"
)

// Document is an opaque JSON-LD entity representation. The adapter never
// interprets its contents beyond round-tripping it through a Converter.
type Document map[string]any

// Converter translates between Documents and the flat quad list the entity
// store persists. Callers inject a real implementation in production.
type Converter interface {
	// ToQuads flattens doc (whose "@id" is assumed to equal path) into the
	// list of quads to persist for that entity.
	ToQuads(path string, doc Document) ([]quad.StringQuad, error)
	// FromQuads reassembles a Document from the quads stored under path.
	FromQuads(path string, quads []quad.StringQuad) (Document, error)
}

// xsdString is the implicit datatype for untyped string literals.
const xsdString = "http://www.w3.org/2001/XMLSchema#string"

// FlatConverter is a reference Converter for documents whose values are
// either plain strings or nested `{"@id": "..."}` references, enough to
// exercise Put/Get round-trips without depending on a full JSON-LD
// processor.
type FlatConverter struct{}

// ToQuads implements Converter.
func (FlatConverter) ToQuads(path string, doc Document) ([]quad.StringQuad, error) {
	var quads []quad.StringQuad
	for predicate, value := range doc {
		if predicate == "@id" {
			continue
		}
		switch v := value.(type) {
		case string:
			quads = append(quads, quad.StringQuad{
				SubjectID:   path,
				PredicateID: predicate,
				Contents: quad.StringContents{
					Kind:   quad.ContentsObject,
					Value:  v,
					TypeID: xsdString,
				},
			})
		case map[string]any:
			ref, ok := v["@id"].(string)
			if !ok {
				return nil, fmt.Errorf("jsonld: nested value for %q missing @id", predicate)
			}
			quads = append(quads, quad.StringQuad{
				SubjectID:   path,
				PredicateID: predicate,
				Contents:    quad.StringContents{Kind: quad.ContentsID, ID: ref},
			})
		default:
			return nil, fmt.Errorf("jsonld: unsupported value type for %q: %T", predicate, value)
		}
	}
	return quads, nil
}

// FromQuads implements Converter.
func (FlatConverter) FromQuads(path string, quads []quad.StringQuad) (Document, error) {
	doc := Document{"@id": path}
	for _, q := range quads {
		switch q.Contents.Kind {
		case quad.ContentsID:
			doc[q.PredicateID] = map[string]any{"@id": q.Contents.ID}
		case quad.ContentsObject, quad.ContentsLanguageString:
			doc[q.PredicateID] = q.Contents.Value
		}
	}
	return doc, nil
}
