package resource

import "testing"

func TestMatchPrefersLiteralOverWildcard(t *testing.T) {
	trie := NewTrie()
	trie.Register("iam-res://host/console/system/**", LeafInfo{})
	trie.Register("iam-res://host/console/system/user/list", LeafInfo{})

	matches := trie.Match("iam-res://host/console/system/user/list")
	if len(matches) != 2 {
		t.Fatalf("expected 2 candidate matches, got %d", len(matches))
	}
	if matches[0].URI != "iam-res://host/console/system/user/list" {
		t.Errorf("expected the literal path to be most specific, got %q first", matches[0].URI)
	}
}

func TestMatchWildcardOnlyHit(t *testing.T) {
	trie := NewTrie()
	trie.Register("iam-res://host/console/system/**", LeafInfo{})

	matches := trie.Match("iam-res://host/console/system/anything/else")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match via wildcard, got %d", len(matches))
	}
}

func TestMatchNoRegisteredResourceIsPublic(t *testing.T) {
	trie := NewTrie()
	if got := trie.Match("iam-res://host/unregistered"); len(got) != 0 {
		t.Errorf("expected no matches for an unregistered resource, got %v", got)
	}
}

func TestUnregisterRemovesLeaf(t *testing.T) {
	trie := NewTrie()
	trie.Register("iam-res://host/a/b", LeafInfo{})
	trie.Unregister("iam-res://host/a/b")
	if got := trie.Match("iam-res://host/a/b"); len(got) != 0 {
		t.Errorf("expected no matches after unregister, got %v", got)
	}
}

func TestSnapshotRoundTripsThroughResetAndRegister(t *testing.T) {
	trie := NewTrie()
	trie.Register("iam-res://host/a/b", LeafInfo{NeedDoubleAuth: true})
	trie.Register("iam-res://host/c/**", LeafInfo{NeedCryptoReq: true})

	snapshot := trie.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 leaves in snapshot, got %d", len(snapshot))
	}

	rebuilt := NewTrie()
	rebuilt.Reset()
	for _, leaf := range snapshot {
		rebuilt.Register(leaf.URI, leaf)
	}

	if got := rebuilt.Match("iam-res://host/a/b"); len(got) != 1 || !got[0].NeedDoubleAuth {
		t.Errorf("expected the rebuilt trie to match the literal leaf, got %v", got)
	}
	if got := rebuilt.Match("iam-res://host/c/anything"); len(got) != 1 || !got[0].NeedCryptoReq {
		t.Errorf("expected the rebuilt trie to match the wildcard leaf, got %v", got)
	}
}

func TestResetDiscardsEveryLeaf(t *testing.T) {
	trie := NewTrie()
	trie.Register("iam-res://host/a", LeafInfo{})
	trie.Reset()
	if got := trie.Snapshot(); len(got) != 0 {
		t.Errorf("expected an empty trie after Reset, got %d leaves", len(got))
	}
}
