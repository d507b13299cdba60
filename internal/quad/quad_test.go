package quad_test

import (
	"testing"

	"github.com/kroeg/cellar/internal/quad"
)

func int32p(v int32) *int32 { return &v }
func strp(v string) *string { return &v }

func TestDecodeContents_ID(t *testing.T) {
	q := quad.DBQuad{ID: 1, AttributeID: int32p(9)}
	c, err := quad.DecodeContents(q)
	if err != nil {
		t.Fatalf("DecodeContents: %v", err)
	}
	if c.Kind != quad.ContentsID || c.ID != 9 {
		t.Errorf("got %+v", c)
	}
}

func TestDecodeContents_LanguageString(t *testing.T) {
	q := quad.DBQuad{ID: 2, Object: strp("hello"), Language: strp("en")}
	c, err := quad.DecodeContents(q)
	if err != nil {
		t.Fatalf("DecodeContents: %v", err)
	}
	if c.Kind != quad.ContentsLanguageString || c.Value != "hello" || c.Language != "en" {
		t.Errorf("got %+v", c)
	}
}

func TestDecodeContents_AttributeIDPrecedesLanguage(t *testing.T) {
	// attribute_id takes priority over object/language even if both are set.
	q := quad.DBQuad{ID: 3, AttributeID: int32p(5), Object: strp("hello"), Language: strp("en")}
	c, err := quad.DecodeContents(q)
	if err != nil {
		t.Fatalf("DecodeContents: %v", err)
	}
	if c.Kind != quad.ContentsID || c.ID != 5 {
		t.Errorf("attribute_id should win, got %+v", c)
	}
}

func TestDecodeContents_Object(t *testing.T) {
	q := quad.DBQuad{ID: 4, Object: strp("42"), TypeID: int32p(7)}
	c, err := quad.DecodeContents(q)
	if err != nil {
		t.Fatalf("DecodeContents: %v", err)
	}
	if c.Kind != quad.ContentsObject || c.Value != "42" || c.TypeID != 7 {
		t.Errorf("got %+v", c)
	}
}

func TestDecodeContents_Malformed(t *testing.T) {
	q := quad.DBQuad{ID: 5}
	_, err := quad.DecodeContents(q)
	if err == nil {
		t.Fatal("expected malformed error")
	}
	var merr *quad.MalformedError
	if me, ok := err.(*quad.MalformedError); !ok {
		t.Fatalf("expected *MalformedError, got %T", err)
	} else {
		merr = me
	}
	if merr.QuadRowID != 5 {
		t.Errorf("QuadRowID = %d, want 5", merr.QuadRowID)
	}
}

type fakeResolver map[int32]string

func (f fakeResolver) URI(id int32) (string, bool) {
	uri, ok := f[id]
	return uri, ok
}

func TestTranslateQuad_ID(t *testing.T) {
	r := fakeResolver{1: "http://s", 2: "http://p", 3: "http://o"}
	q := quad.DBQuad{ID: 1, SubjectID: 1, PredicateID: 2, AttributeID: int32p(3)}

	sq, err := quad.TranslateQuad(r, q)
	if err != nil {
		t.Fatalf("TranslateQuad: %v", err)
	}
	if sq.SubjectID != "http://s" || sq.PredicateID != "http://p" {
		t.Errorf("got %+v", sq)
	}
	if sq.Contents.Kind != quad.ContentsID || sq.Contents.ID != "http://o" {
		t.Errorf("contents = %+v", sq.Contents)
	}
}

func TestTranslateQuad_LanguageString_UsesCanonicalDatatype(t *testing.T) {
	r := fakeResolver{1: "http://s", 2: "http://p"}
	q := quad.DBQuad{ID: 1, SubjectID: 1, PredicateID: 2, Object: strp("hi"), Language: strp("en")}

	sq, err := quad.TranslateQuad(r, q)
	if err != nil {
		t.Fatalf("TranslateQuad: %v", err)
	}
	if sq.Contents.TypeID != quad.LangStringDatatype {
		t.Errorf("TypeID = %q, want canonical langString IRI", sq.Contents.TypeID)
	}
}

func TestTranslateQuad_UnresolvedSubject(t *testing.T) {
	r := fakeResolver{}
	q := quad.DBQuad{ID: 1, SubjectID: 1, PredicateID: 2, AttributeID: int32p(3)}
	if _, err := quad.TranslateQuad(r, q); err == nil {
		t.Fatal("expected error for unresolved subject id")
	}
}

func TestTranslateQuad_UnresolvedObjectID(t *testing.T) {
	r := fakeResolver{1: "http://s", 2: "http://p"}
	q := quad.DBQuad{ID: 1, SubjectID: 1, PredicateID: 2, AttributeID: int32p(99)}
	if _, err := quad.TranslateQuad(r, q); err == nil {
		t.Fatal("expected error for unresolved object id")
	}
}

func TestCollectQuadIDs(t *testing.T) {
	quads := []quad.DBQuad{
		{QuadID: 1, SubjectID: 2, PredicateID: 3, AttributeID: int32p(4)},
		{QuadID: 1, SubjectID: 2, PredicateID: 3, Object: strp("x"), TypeID: int32p(5)},
	}
	ids := quad.CollectQuadIDs(quads)
	for _, want := range []int32{1, 2, 3, 4, 5} {
		if _, ok := ids[want]; !ok {
			t.Errorf("missing id %d in %v", want, ids)
		}
	}
	if len(ids) != 5 {
		t.Errorf("got %d ids, want 5", len(ids))
	}
}
