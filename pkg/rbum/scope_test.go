package rbum

import "testing"

func TestCheckScope(t *testing.T) {
	cases := []struct {
		name         string
		recordPaths  string
		recordScope  ScopeLevel
		queryPaths   string
		wantVisible  bool
	}{
		{"root is always visible", "t9", ScopeRoot, "t1/a1", true},
		{"private exact match", "t1/a1", ScopePrivate, "t1/a1", true},
		{"private mismatch", "t1/a1", ScopePrivate, "t1/a2", false},
		{"l1 prefix visible from sub-path", "t1", ScopeL1, "t1/a1", true},
		{"l1 not visible from other tenant", "t1", ScopeL1, "t2", false},
		{"l2 requires two segment prefix", "t1/a1", ScopeL2, "t1/a1/extra", true},
		{"l2 rejects shorter query", "t1/a1", ScopeL2, "t1", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CheckScope(c.recordPaths, c.recordScope, c.queryPaths)
			if got != c.wantVisible {
				t.Errorf("CheckScope(%q, %v, %q) = %v, want %v", c.recordPaths, c.recordScope, c.queryPaths, got, c.wantVisible)
			}
		})
	}
}

func TestGetPathItem(t *testing.T) {
	if v, ok := GetPathItem(1, "t1/a1/g1"); !ok || v != "t1" {
		t.Errorf("level 1 = %q, %v, want t1, true", v, ok)
	}
	if v, ok := GetPathItem(2, "t1/a1/g1"); !ok || v != "a1" {
		t.Errorf("level 2 = %q, %v, want a1, true", v, ok)
	}
	if _, ok := GetPathItem(5, "t1/a1"); ok {
		t.Errorf("level 5 should not exist")
	}
}

func TestWithSubPredicate(t *testing.T) {
	if !WithSubPredicate(true, "t1", "t1/a1") {
		t.Error("expected sub-path match when with_sub is true")
	}
	if WithSubPredicate(false, "t1", "t1/a1") {
		t.Error("expected no match when with_sub is false and paths differ")
	}
	if !WithSubPredicate(false, "t1/a1", "t1/a1") {
		t.Error("expected exact match when with_sub is false")
	}
}
