package id

import "testing"

func TestNextMonotonic(t *testing.T) {
	g := NewGenerator()
	prev := g.Next()
	for i := 0; i < 10000; i++ {
		cur := g.Next()
		if cur.Compare(prev) <= 0 {
			t.Fatalf("id not strictly increasing at %d: %s <= %s", i, cur, prev)
		}
		prev = cur
	}
}

func TestClockRegression(t *testing.T) {
	saved := NowMs
	defer func() { NowMs = saved }()

	now := int64(1_700_000_000_000)
	NowMs = func() int64 { return now }

	g := NewGenerator()
	a := g.Next()
	now -= 50 // clock goes backwards
	b := g.Next()
	if b.Compare(a) <= 0 {
		t.Fatalf("id regressed with clock: %s <= %s", b, a)
	}
}

func TestStringAndShort(t *testing.T) {
	g := NewGenerator()
	v := g.Next()
	if len(v.String()) != 32 {
		t.Fatalf("hex length: %d", len(v.String()))
	}
	if len(v.Short()) != 8 {
		t.Fatalf("short length: %d", len(v.Short()))
	}
}
