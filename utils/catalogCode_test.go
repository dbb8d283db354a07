package utils

import (
	"reflect"
	"testing"
)

func TestCatalogCodeHelpers(t *testing.T) {
	cases := []struct {
		code      string
		valid     bool
		depth     int
		parent    string
		ancestors []string
	}{
		{"2", true, 1, "", []string{}},
		{"2.1", true, 2, "2", []string{"2"}},
		{"2.1.1.1", true, 4, "2.1.1", []string{"2", "2.1", "2.1.1"}},
		{"10.12.3", true, 3, "10.12", []string{"10", "10.12"}},
	}
	for _, tc := range cases {
		if IsCatalogCode(tc.code) != tc.valid {
			t.Fatalf("IsCatalogCode(%q) expected %v", tc.code, tc.valid)
		}
		if got := CodeDepth(tc.code); got != tc.depth {
			t.Fatalf("CodeDepth(%q) expected %d, got %d", tc.code, tc.depth, got)
		}
		if got := ParentCode(tc.code); got != tc.parent {
			t.Fatalf("ParentCode(%q) expected %q, got %q", tc.code, tc.parent, got)
		}
		if got := AncestorCodes(tc.code); !reflect.DeepEqual(got, tc.ancestors) {
			t.Fatalf("AncestorCodes(%q) expected %v, got %v", tc.code, tc.ancestors, got)
		}
	}

	for _, bad := range []string{"", "2.", ".1", "2.a", "2.1 (+)", "A1"} {
		if IsCatalogCode(bad) {
			t.Fatalf("IsCatalogCode(%q) expected false", bad)
		}
	}
}
