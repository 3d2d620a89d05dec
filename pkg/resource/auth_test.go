package resource

import (
	"context"
	"testing"
)

func TestFacetContains(t *testing.T) {
	facet := "#role-a##role-b#"
	if !facetContains(facet, "role-a") {
		t.Error("expected role-a to be found")
	}
	if !facetContains(facet, "role-b") {
		t.Error("expected role-b to be found")
	}
	if facetContains(facet, "role-c") {
		t.Error("did not expect role-c to be found")
	}
	if facetContains(facet, "role") {
		t.Error("expected a partial id not to match (sentinel-delimited)")
	}
}

func TestGroupFacetMatchesHierarchy(t *testing.T) {
	facet := "#org/team-a/sub#"
	if !groupFacetMatches(facet, "org/team-a") {
		t.Error("expected a group prefix to match a deeper stored group")
	}
	if groupFacetMatches(facet, "org/team-b") {
		t.Error("did not expect an unrelated group to match")
	}
}

func TestDoAuthPublicResource(t *testing.T) {
	trie := NewTrie()
	eval := NewEvaluator(trie, nil)
	leaf, err := eval.DoAuth(context.Background(), "GET", "iam-res://host/public/path", AuthContext{})
	if err != nil {
		t.Fatalf("expected no error for an unregistered (public) resource, got %v", err)
	}
	if leaf != nil {
		t.Errorf("expected nil leaf for a public resource, got %+v", leaf)
	}
}

func TestDoAuthAcceptsOnRoleMatch(t *testing.T) {
	trie := NewTrie()
	trie.Register("iam-res://host/console/system/user/list", LeafInfo{
		Auth: &AuthFacets{Roles: "#tenant-audit#"},
	})
	eval := NewEvaluator(trie, nil)

	leaf, err := eval.DoAuth(context.Background(), "GET", "iam-res://host/console/system/user/list", AuthContext{Roles: []string{"tenant-audit"}})
	if err != nil {
		t.Fatalf("expected access to be granted, got error %v", err)
	}
	if leaf == nil {
		t.Fatal("expected a matched leaf")
	}
}

func TestDoAuthRejectsWithoutMatch(t *testing.T) {
	trie := NewTrie()
	trie.Register("iam-res://host/console/system/**", LeafInfo{
		Auth: &AuthFacets{Roles: "#admin#"},
	})
	eval := NewEvaluator(trie, nil)

	_, err := eval.DoAuth(context.Background(), "GET", "iam-res://host/console/system/anything", AuthContext{Roles: []string{"tenant-audit"}})
	if err == nil {
		t.Fatal("expected a forbidden error when no facet matches")
	}
}
