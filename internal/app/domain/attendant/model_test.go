package attendant

import "testing"

func TestCommissionAmount(t *testing.T) {
	cases := []struct{ base, bps, want int }{
		{10000, 4000, 4000},
		{999, 3333, 332},
		{0, 5000, 0},
		{5000, 0, 0},
		{-10, 5000, 0},
		{12345, 10000, 12345},
	}
	for _, c := range cases {
		if got := CommissionAmount(c.base, c.bps); got != c.want {
			t.Fatalf("CommissionAmount(%d, %d) = %d, want %d", c.base, c.bps, got, c.want)
		}
	}
}

func TestPerforms(t *testing.T) {
	all := Attendant{}
	if !all.Performs("svc") {
		t.Fatalf("empty list should allow all services")
	}
	some := Attendant{ServiceIDs: []string{"a"}}
	if !some.Performs("a") || some.Performs("b") {
		t.Fatalf("unexpected performs result")
	}
}

func TestValidate(t *testing.T) {
	if err := (Attendant{Name: "Bia", CommissionBps: 10001}).Validate(); err == nil {
		t.Fatalf("expected bps error")
	}
	if err := (Attendant{Name: " "}).Validate(); err == nil {
		t.Fatalf("expected name error")
	}
}
