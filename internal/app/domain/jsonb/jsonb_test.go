package jsonb

import "testing"

func TestStringsRoundTrip(t *testing.T) {
	in := Strings{"a", "b"}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var out Strings
	if err := out.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(out) != 2 || !out.Contains("b") {
		t.Fatalf("unexpected strings: %v", out)
	}
}

func TestNilValues(t *testing.T) {
	var s Strings
	v, _ := s.Value()
	if v.(string) != "[]" {
		t.Fatalf("nil strings should store empty array, got %s", v)
	}
	var m Map
	v, _ = m.Value()
	if v.(string) != "{}" {
		t.Fatalf("nil map should store empty object, got %s", v)
	}
	if err := m.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if err := m.Scan(42); err == nil {
		t.Fatalf("expected error for unsupported source")
	}
}
