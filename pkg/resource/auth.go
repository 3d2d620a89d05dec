package resource

import (
	"context"
	"regexp"

	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/iamerr"
)

// AuthContext is the principal attempting access, evaluated against each
// candidate leaf's AuthFacets.
type AuthContext struct {
	AccountID string
	Roles     []string
	Groups    []string
	AppID     string
	TenantID  string
}

// Evaluator runs do_auth against a Trie and the cache-backed double-auth flag.
type Evaluator struct {
	trie  *Trie
	cache *cache.Cache
}

// NewEvaluator wires a Trie and the cache surface for double-auth checks.
func NewEvaluator(trie *Trie, c *cache.Cache) *Evaluator {
	return &Evaluator{trie: trie, cache: c}
}

// sentinel wraps id in `#...#` delimiters matching the stored facet encoding.
func sentinel(id string) string { return "#" + id + "#" }

// facetContains reports whether facet (a `#id1##id2#...` string) contains id
// as an exact `#id#` sentinel match.
func facetContains(facet, id string) bool {
	if facet == "" || id == "" {
		return false
	}
	return containsSentinel(facet, sentinel(id))
}

func containsSentinel(facet, wrapped string) bool {
	for i := 0; i+len(wrapped) <= len(facet); i++ {
		if facet[i:i+len(wrapped)] == wrapped {
			return true
		}
	}
	return false
}

// groupFacetMatches implements the group hierarchy match: `#<group>#` in
// the request matches any stored prefix `#<group>...#`.
func groupFacetMatches(facet, group string) bool {
	if facet == "" || group == "" {
		return false
	}
	re, err := regexp.Compile("#" + regexp.QuoteMeta(group) + ".*#")
	if err != nil {
		return false
	}
	return re.MatchString(facet)
}

// DoAuth walks Match's candidates in order, accepting on the first leaf
// whose constraints are satisfied. A double-auth-gated leaf rejects
// immediately when the flag is absent.
func (e *Evaluator) DoAuth(ctx context.Context, action, uri string, actx AuthContext) (*LeafInfo, error) {
	candidates := e.trie.Match(uri)
	if len(candidates) == 0 {
		return nil, nil // public resource
	}

	for i := range candidates {
		leaf := &candidates[i]

		if leaf.NeedDoubleAuth {
			ok, err := e.cache.HasDoubleAuthFlag(ctx, actx.AccountID)
			if err != nil {
				return nil, err
			}
			if !ok {
				// The most specific matching rule decides: a missing
				// double-auth flag rejects outright rather than falling
				// through to a broader, unguarded sibling.
				return nil, iamerr.Forbidden("resource", "do-auth", "double-auth required")
			}
		}

		if leaf.Auth == nil {
			return leaf, nil
		}

		if facetAccepts(leaf.Auth, actx) {
			return leaf, nil
		}
	}

	return nil, iamerr.Forbidden("resource", "do-auth", "permission-denied")
}

func facetAccepts(auth *AuthFacets, actx AuthContext) bool {
	if facetContains(auth.Accounts, actx.AccountID) {
		return true
	}
	for _, r := range actx.Roles {
		if facetContains(auth.Roles, r) {
			return true
		}
	}
	for _, g := range actx.Groups {
		if groupFacetMatches(auth.Groups, g) {
			return true
		}
	}
	if facetContains(auth.Apps, actx.AppID) {
		return true
	}
	if facetContains(auth.Tenants, actx.TenantID) {
		return true
	}
	return false
}
