package catalog

import "testing"

func TestServiceValidate(t *testing.T) {
	ok := Service{Name: "Cut", Duration: 45, PriceCents: 5000}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	bad := []Service{
		{Name: "", Duration: 30},
		{Name: "x", Duration: 0},
		{Name: "x", Duration: 33},
		{Name: "x", Duration: 725},
		{Name: "x", Duration: 30, PriceCents: -1},
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
