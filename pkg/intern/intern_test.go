package intern

import "testing"

func TestInternReusesIDs(t *testing.T) {
	tbl := NewTable(0)
	a := tbl.Intern("bonjour")
	b := tbl.Intern("bonjour")
	if a != b {
		t.Fatalf("expected same id for repeated intern, got %d and %d", a, b)
	}
	c := tbl.Intern("chat")
	if c == a {
		t.Fatalf("expected distinct id for distinct string")
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", tbl.Len())
	}
}

func TestLookupRoundTrip(t *testing.T) {
	tbl := NewTable(4)
	id := tbl.Intern("bonjour")
	s, ok := tbl.Lookup(id)
	if !ok || s != "bonjour" {
		t.Fatalf("expected round trip, got %q, %v", s, ok)
	}
	if _, ok := tbl.Lookup(ID(999)); ok {
		t.Fatalf("expected lookup of unknown id to fail")
	}
}

func TestMustLookupPanicsOnUnknownID(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range id")
		}
	}()
	tbl := NewTable(0)
	tbl.MustLookup(ID(42))
}
