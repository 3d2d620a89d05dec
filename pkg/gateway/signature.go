package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"sort"
	"strings"
)

// canonicalQuery renders query params sorted by key, joined as
// "k1=v1&k2=v2" — the canonical sorted_query signing input. Keys with an
// empty value are omitted, so both sides sign the same string regardless
// of whether a bare "tag=" made it onto the wire.
func canonicalQuery(query map[string]string) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for k, v := range query {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(query[k])
	}
	return b.String()
}

// signingString builds the exact payload AK/SK signatures cover: lowercase(method\ndate\npath\nsorted_query).
func signingString(method, date, path string, query map[string]string) string {
	raw := method + "\n" + date + "\n" + path + "\n" + canonicalQuery(query)
	return strings.ToLower(raw)
}

// Sign computes base64(HMAC-SHA256(signingString, sk)) — the signature a
// caller attaches in the Authorization header.
func Sign(method, date, path string, query map[string]string, sk string) string {
	mac := hmac.New(sha256.New, []byte(sk))
	mac.Write([]byte(signingString(method, date, path, query)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether sig matches the expected signature for
// the given request fields and secret key, using a constant-time compare.
func VerifySignature(method, date, path string, query map[string]string, sk, sig string) bool {
	expected := Sign(method, date, path, query, sk)
	return hmac.Equal([]byte(expected), []byte(sig))
}
