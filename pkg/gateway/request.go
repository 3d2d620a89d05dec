package gateway

// AuthReq is the normalized inbound request the gateway hands to Auth:
// scheme/method/host/port/path describe the target resource,
// query and headers carry the raw wire values, body is present only when
// the caller wants decrypt-on-the-way-in.
type AuthReq struct {
	Scheme  string
	Method  string
	Host    string
	Port    int
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    []byte
}

// AuthResp is Auth's verdict: Allow gates whether the caller proceeds,
// Reason explains a rejection, Body/Headers carry the decrypted payload
// and any response-side additions back to the caller.
type AuthResp struct {
	Allow   bool
	Reason  string
	Body    []byte
	Headers map[string]string
}

func deny(reason string) (*AuthResp, error) {
	return &AuthResp{Allow: false, Reason: reason}, nil
}

func (r AuthReq) header(cfg HeaderConfig, name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	// HTTP header lookups are conventionally case-insensitive; the wire
	// layer that builds AuthReq.Headers is expected to preserve the
	// caller's casing, so fall back to a case-insensitive scan here.
	for k, v := range r.Headers {
		if equalFold(k, name) {
			return v
		}
	}
	return ""
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// resourceURI renders the scheme://host/path form the resource trie
// matches against, defaulting scheme to DefaultProtocol
// when the caller left it blank.
func (r AuthReq) resourceURI() string {
	scheme := r.Scheme
	if scheme == "" {
		scheme = DefaultProtocol
	}
	return scheme + "://" + r.Host + r.Path
}
