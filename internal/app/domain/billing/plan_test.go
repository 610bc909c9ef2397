package billing

import "testing"

func TestCatalogFind(t *testing.T) {
	c := DefaultPlans()
	if p := c.Find(PlanPro); p.MaxAttendants != 5 || !p.Campaigns {
		t.Fatalf("unexpected pro plan %+v", p)
	}
	if p := c.Find("unknown"); p.Name != PlanFree {
		t.Fatalf("expected fallback to free, got %s", p.Name)
	}
	if !c.Find(PlanBusiness).Unlimited() {
		t.Fatalf("business plan should be unlimited")
	}
}

func TestCatalogByPriceID(t *testing.T) {
	c := Catalog{{Name: "pro", StripePriceID: "price_1"}}
	if p, ok := c.ByPriceID("price_1"); !ok || p.Name != "pro" {
		t.Fatalf("lookup failed: %+v %v", p, ok)
	}
	if _, ok := c.ByPriceID(""); ok {
		t.Fatalf("empty price id must not match")
	}
}
