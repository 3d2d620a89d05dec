package gateway

import "testing"

func TestCanonicalQuerySortsKeys(t *testing.T) {
	got := canonicalQuery(map[string]string{"b": "2", "a": "1", "c": "3"})
	want := "a=1&b=2&c=3"
	if got != want {
		t.Errorf("canonicalQuery() = %q, want %q", got, want)
	}
}

func TestCanonicalQueryEmpty(t *testing.T) {
	if got := canonicalQuery(nil); got != "" {
		t.Errorf("canonicalQuery(nil) = %q, want empty", got)
	}
}

func TestCanonicalQueryOmitsEmptyValues(t *testing.T) {
	got := canonicalQuery(map[string]string{"b": "2", "tag": "", "a": "1"})
	want := "a=1&b=2"
	if got != want {
		t.Errorf("canonicalQuery() = %q, want %q (empty-value keys omitted)", got, want)
	}
	if got := canonicalQuery(map[string]string{"tag": ""}); got != "" {
		t.Errorf("canonicalQuery(all-empty) = %q, want empty", got)
	}
}

func TestSignIsLowercasedAndDeterministic(t *testing.T) {
	query := map[string]string{"Name": "Val"}
	sig1 := Sign("GET", "1700000000000", "/Console/System", query, "topsecret")
	sig2 := Sign("get", "1700000000000", "/Console/System", query, "topsecret")
	if sig1 != sig2 {
		t.Error("expected method casing not to affect the signature (signing string is lowercased)")
	}
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	query := map[string]string{"page": "1", "size": "20"}
	sig := Sign("POST", "1700000000000", "/console/system/user", query, "sk-value")
	if !VerifySignature("POST", "1700000000000", "/console/system/user", query, "sk-value", sig) {
		t.Fatal("expected a freshly computed signature to verify")
	}
	if VerifySignature("POST", "1700000000000", "/console/system/user", query, "wrong-sk", sig) {
		t.Error("did not expect a signature to verify against the wrong secret")
	}
}
