package jsonld_test

import (
	"testing"

	"github.com/kroeg/cellar/internal/jsonld"
	"github.com/kroeg/cellar/internal/quad"
)

func TestFlatConverter_ToQuads_StringValue(t *testing.T) {
	doc := jsonld.Document{"@id": "http://e", "http://name": "Alice"}
	quads, err := jsonld.FlatConverter{}.ToQuads("http://e", doc)
	if err != nil {
		t.Fatalf("ToQuads: %v", err)
	}
	if len(quads) != 1 {
		t.Fatalf("got %d quads, want 1", len(quads))
	}
	q := quads[0]
	if q.SubjectID != "http://e" || q.PredicateID != "http://name" {
		t.Errorf("got %+v", q)
	}
	if q.Contents.Kind != quad.ContentsObject || q.Contents.Value != "Alice" {
		t.Errorf("contents = %+v", q.Contents)
	}
}

func TestFlatConverter_ToQuads_Reference(t *testing.T) {
	doc := jsonld.Document{
		"@id":          "http://e",
		"http://knows": map[string]any{"@id": "http://friend"},
	}
	quads, err := jsonld.FlatConverter{}.ToQuads("http://e", doc)
	if err != nil {
		t.Fatalf("ToQuads: %v", err)
	}
	if len(quads) != 1 || quads[0].Contents.Kind != quad.ContentsID || quads[0].Contents.ID != "http://friend" {
		t.Errorf("got %+v", quads)
	}
}

func TestFlatConverter_ToQuads_MissingID_Errors(t *testing.T) {
	doc := jsonld.Document{"http://knows": map[string]any{"name": "no @id here"}}
	if _, err := (jsonld.FlatConverter{}).ToQuads("http://e", doc); err == nil {
		t.Fatal("expected error for missing @id")
	}
}

func TestFlatConverter_ToQuads_UnsupportedType(t *testing.T) {
	doc := jsonld.Document{"http://count": 42}
	if _, err := (jsonld.FlatConverter{}).ToQuads("http://e", doc); err == nil {
		t.Fatal("expected error for unsupported value type")
	}
}

func TestFlatConverter_FromQuads_RoundTrip(t *testing.T) {
	quads := []quad.StringQuad{
		{SubjectID: "http://e", PredicateID: "http://name", Contents: quad.StringContents{Kind: quad.ContentsObject, Value: "Alice"}},
		{SubjectID: "http://e", PredicateID: "http://knows", Contents: quad.StringContents{Kind: quad.ContentsID, ID: "http://friend"}},
	}
	doc, err := jsonld.FlatConverter{}.FromQuads("http://e", quads)
	if err != nil {
		t.Fatalf("FromQuads: %v", err)
	}
	if doc["@id"] != "http://e" || doc["http://name"] != "Alice" {
		t.Errorf("got %+v", doc)
	}
	ref, ok := doc["http://knows"].(map[string]any)
	if !ok || ref["@id"] != "http://friend" {
		t.Errorf("knows = %+v", doc["http://knows"])
	}
}

func TestFlatConverter_FromQuads_LanguageString(t *testing.T) {
	quads := []quad.StringQuad{
		{SubjectID: "http://e", PredicateID: "http://name", Contents: quad.StringContents{Kind: quad.ContentsLanguageString, Value: "bonjour", Language: "fr"}},
	}
	doc, err := jsonld.FlatConverter{}.FromQuads("http://e", quads)
	if err != nil {
		t.Fatalf("FromQuads: %v", err)
	}
	if doc["http://name"] != "bonjour" {
		t.Errorf("got %+v", doc)
	}
}
