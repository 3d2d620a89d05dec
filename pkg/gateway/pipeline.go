package gateway

import (
	"context"
	"crypto/rsa"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/iamerr"
	"github.com/grayforge/keyward/pkg/resource"
	"github.com/grayforge/keyward/pkg/session"
)

// Identity is what the Identify step resolves, from whichever of the
// three authentication strategies succeeded.
type Identity struct {
	AccountID string
	AppID     string
	TenantID  string
	Anonymous bool
}

// Pipeline runs the five-step Auth state machine:
// Preflight, Identify, Match&Authorise, Decrypt, Emit.
type Pipeline struct {
	headers  HeaderConfig
	sessions *session.Service
	eval     *resource.Evaluator
	cache    *cache.Cache
	key      *rsa.PrivateKey // server's envelope key, nil disables decrypt/emit

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	rateLimit rate.Limit
	rateBurst int
}

// NewPipeline wires the gateway's dependencies. serverKey may be nil when
// the deployment has no crypto-envelope requirement configured.
func NewPipeline(headers HeaderConfig, sessions *session.Service, eval *resource.Evaluator, c *cache.Cache, serverKey *rsa.PrivateKey) *Pipeline {
	return &Pipeline{
		headers:   headers,
		sessions:  sessions,
		eval:      eval,
		cache:     c,
		key:       serverKey,
		limiters:  make(map[string]*rate.Limiter),
		rateLimit: rate.Every(time.Second),
		rateBurst: 5,
	}
}

// limiterFor returns the per-ak/per-ip token bucket for key, creating one
// lazily.
func (p *Pipeline) limiterFor(key string) *rate.Limiter {
	p.limiterMu.Lock()
	defer p.limiterMu.Unlock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.rateLimit, p.rateBurst)
		p.limiters[key] = l
	}
	return l
}

// Auth runs the full pipeline against req. A CORS preflight (OPTIONS)
// short-circuits to an unconditional allow before any identification or
// policy work.
func (p *Pipeline) Auth(ctx context.Context, req AuthReq) (*AuthResp, error) {
	if strings.EqualFold(req.Method, "OPTIONS") {
		return &AuthResp{Allow: true}, nil
	}

	if err := p.preflight(req); err != nil {
		return deny(err.Error())
	}

	identity, err := p.identify(ctx, req)
	if err != nil {
		return deny(err.Error())
	}

	leaf, err := p.matchAndAuthorise(ctx, req, identity)
	if err != nil {
		return deny(err.Error())
	}

	body := req.Body
	if leaf != nil && leaf.NeedCryptoReq && len(body) > 0 {
		body, err = p.decrypt(req)
		if err != nil {
			return deny(err.Error())
		}
	}

	return p.emit(req, leaf, body)
}

// preflight rejects malformed requests before any identification work
// happens: method/path present, and for AK/SK
// signature requests, the Bios-Date header within the allowed interval.
func (p *Pipeline) preflight(req AuthReq) error {
	if req.Method == "" || req.Path == "" {
		return iamerr.BadRequest("gateway", "preflight", "method and path are required")
	}

	sig := req.header(p.headers, p.headers.Authorization)
	if sig == "" {
		return nil
	}

	dateHeader := req.header(p.headers, p.headers.Date)
	if dateHeader == "" {
		return iamerr.BadRequest("gateway", "preflight", "missing date header for a signed request")
	}
	millis, err := strconv.ParseInt(dateHeader, 10, 64)
	if err != nil {
		return iamerr.BadRequest("gateway", "preflight", "malformed date header")
	}
	ts := time.UnixMilli(millis)
	if d := time.Since(ts); d > DefaultDateIntervalMillis*time.Millisecond || d < -DefaultDateIntervalMillis*time.Millisecond {
		return iamerr.Unauthorized("gateway", "preflight", "date header outside the allowed interval")
	}
	return nil
}

// identify resolves the caller via, in precedence order: Bios-Token
// (session bearer), Bios-App + AK/SK signature (Bios-Authorization), or
// anonymous when neither is present.
func (p *Pipeline) identify(ctx context.Context, req AuthReq) (Identity, error) {
	if token := req.header(p.headers, p.headers.Token); token != "" {
		info, err := p.sessions.Authenticate(ctx, token)
		if err != nil {
			return Identity{}, err
		}
		actx, err := p.sessions.GetAccountContext(ctx, info.AccountID, req.header(p.headers, p.headers.App))
		if err != nil {
			return Identity{}, err
		}
		return Identity{AccountID: info.AccountID, AppID: actx.AppID, TenantID: actx.TenantID}, nil
	}

	if sig := req.header(p.headers, p.headers.Authorization); sig != "" {
		return p.identifyAkSk(ctx, req, sig)
	}

	return Identity{Anonymous: true}, nil
}

// identifyAkSk validates an AK/SK-signed request against the
// formula: base64(HMAC-SHA256(lowercase(method\ndate\npath\nsorted_query), sk)).
// The ak itself travels in the Authorization header as "<ak>:<signature>".
// A Bios-App header, when present, must name the app the ak is bound to.
func (p *Pipeline) identifyAkSk(ctx context.Context, req AuthReq, authHeader string) (Identity, error) {
	parts := strings.SplitN(authHeader, ":", 2)
	if len(parts) != 2 {
		return Identity{}, iamerr.Unauthorized("gateway", "identify", "malformed ak/sk authorization header")
	}
	ak, sig := parts[0], parts[1]

	ip := req.header(p.headers, "X-Forwarded-For")
	if !p.limiterFor("ak:" + ak).Allow() || (ip != "" && !p.limiterFor("ip:"+ip).Allow()) {
		return Identity{}, iamerr.Forbidden("gateway", "identify", "too many authentication attempts")
	}

	info, err := p.cache.GetAkSkInfo(ctx, ak)
	if err == cache.ErrMiss {
		return Identity{}, iamerr.Unauthorized("gateway", "identify", "unknown access key")
	}
	if err != nil {
		return Identity{}, err
	}

	date := req.header(p.headers, p.headers.Date)
	if !VerifySignature(req.Method, date, req.Path, req.Query, info.Sk, sig) {
		return Identity{}, iamerr.Unauthorized("gateway", "identify", "signature mismatch")
	}
	if app := req.header(p.headers, p.headers.App); app != "" && app != info.AppID {
		return Identity{}, iamerr.Unauthorized("gateway", "identify", "app header does not match the access key's app")
	}

	return Identity{AppID: info.AppID, TenantID: info.TenantID}, nil
}

// matchAndAuthorise runs the resource trie lookup and do_auth against the
// resolved identity.
func (p *Pipeline) matchAndAuthorise(ctx context.Context, req AuthReq, identity Identity) (*resource.LeafInfo, error) {
	actx := resource.AuthContext{
		AccountID: identity.AccountID,
		AppID:     identity.AppID,
		TenantID:  identity.TenantID,
	}
	return p.eval.DoAuth(ctx, req.Method, req.resourceURI(), actx)
}

// decrypt unwraps the Bios-Crypto envelope using the server's private key.
func (p *Pipeline) decrypt(req AuthReq) ([]byte, error) {
	if p.key == nil {
		return nil, iamerr.Internal("gateway", "decrypt", "no server crypto key configured")
	}
	header := req.header(p.headers, p.headers.Crypto)
	if header == "" {
		return nil, iamerr.BadRequest("gateway", "decrypt", "missing crypto envelope header")
	}
	body, _, err := DecryptEnvelope(p.key, header, req.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// emit assembles the final response: a plain allow when no response
// encryption is required, or a re-encrypted envelope when the matched
// leaf set need_crypto_resp.
func (p *Pipeline) emit(req AuthReq, leaf *resource.LeafInfo, body []byte) (*AuthResp, error) {
	resp := &AuthResp{Allow: true, Body: body}
	if leaf == nil || !leaf.NeedCryptoResp || p.key == nil {
		return resp, nil
	}

	clientPub := req.header(p.headers, p.headers.Ctx)
	envelopeHeader, cipherBody, err := EncryptEnvelope(&p.key.PublicKey, body, clientPub)
	if err != nil {
		return nil, err
	}
	resp.Body = cipherBody
	resp.Headers = map[string]string{p.headers.Crypto: envelopeHeader}
	return resp, nil
}
