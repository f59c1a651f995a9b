package cmd

import "testing"

func TestParseCylHead(t *testing.T) {
	cases := []struct {
		name       string
		wantCyl    int
		wantHead   int
		wantParsed bool
	}{
		{"disk00.0.raw", 0, 0, true},
		{"track/disk35.1.raw", 35, 1, true},
		{"no-position-info.raw", 0, 0, false},
	}
	for _, c := range cases {
		cyl, head, ok := parseCylHead(c.name)
		if ok != c.wantParsed {
			t.Fatalf("parseCylHead(%q) ok = %v, want %v", c.name, ok, c.wantParsed)
		}
		if !ok {
			continue
		}
		if cyl != c.wantCyl || head != c.wantHead {
			t.Fatalf("parseCylHead(%q) = (%d, %d), want (%d, %d)", c.name, cyl, head, c.wantCyl, c.wantHead)
		}
	}
}
