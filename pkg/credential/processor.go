// Package credential implements the credential engine: cert-conf
// resolution, ak/sk validation and hashing, vcode issuance, and the
// per-ak lockout counter.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// Well-known credential kinds (mirrors pkg/rbum's account/app/tenant kinds,
// but these name credential *kinds*, not item kinds).
const (
	KindUserPwd     = "user-pwd"
	KindAkSk        = "ak-sk"
	KindVCode       = "vcode"
	KindOAuth2Client = "oauth2-client"

	// KindOAuth2Supplier certs hold a tenant's external IdP registration
	// (ak = supplier name, sk = client secret, supplier field = config
	// blob); KindOAuth2Account certs bind an external subject to a local
	// account (ak = "<supplier>:<subject>").
	KindOAuth2Supplier = "oauth2-supplier"
	KindOAuth2Account  = "oauth2-account"
)

// Processor is the capability set a credential kind must implement,
// dispatched through the Registry by kind.
type Processor interface {
	// Validate checks ak/sk against the kind's own rules beyond the
	// cert-conf's generic ak_rule/sk_rule regex (e.g. password strength).
	Validate(ak, sk string) error
	// Hash derives the stored secret from a plaintext sk, or returns sk
	// unchanged if the kind stores secrets in the clear (vcode kind: the
	// code is compared exactly and never hashed).
	Hash(ak, sk string) (string, error)
	// Verify reports whether candidate matches the stored secret.
	Verify(ak, stored, candidate string) bool
}

// Registry dispatches a credential kind to its Processor.
type Registry struct {
	processors map[string]Processor
}

// NewRegistry builds the default registry: password (bcrypt), ak-sk
// (SHA-256 of ak||sk), and vcode (cleartext, single-use, compared
// exactly).
func NewRegistry() *Registry {
	return &Registry{
		processors: map[string]Processor{
			KindUserPwd: passwordProcessor{},
			KindAkSk:    akSkProcessor{},
			KindVCode:   vcodeProcessor{},
			KindOAuth2Client: akSkProcessor{},
		},
	}
}

// Register installs or overrides a processor for kind.
func (r *Registry) Register(kind string, p Processor) {
	r.processors[kind] = p
}

// For returns the processor for kind, or a NotFound error if unregistered.
func (r *Registry) For(kind string) (Processor, error) {
	p, ok := r.processors[kind]
	if !ok {
		return nil, iamerr.NotFound("credential", "processor-lookup", "no processor registered for kind "+kind)
	}
	return p, nil
}

// passwordProcessor implements Processor for user-facing passwords.
type passwordProcessor struct{}

func (passwordProcessor) Validate(_, sk string) error { return validatePasswordStrength(sk) }
func (passwordProcessor) Hash(_, sk string) (string, error) {
	return hashBcrypt(sk)
}
func (passwordProcessor) Verify(_, stored, candidate string) bool {
	return verifyBcrypt(stored, candidate)
}

// akSkProcessor implements Processor for machine ak/sk pairs, hashed with
// the platform's H(ak||sk) function. H is fixed to SHA-256; SM3 has no
// maintained Go implementation and stays unimplemented.
type akSkProcessor struct{}

func (akSkProcessor) Validate(ak, sk string) error {
	if ak == "" || sk == "" {
		return iamerr.BadRequest("credential", "validate-aksk", "ak and sk must be non-empty")
	}
	return nil
}
func (akSkProcessor) Hash(ak, sk string) (string, error) { return hashAkSk(ak, sk), nil }
func (akSkProcessor) Verify(ak, stored, candidateSk string) bool {
	return stored == hashAkSk(ak, candidateSk)
}

func hashAkSk(ak, sk string) string {
	sum := sha256.Sum256([]byte(ak + sk))
	return hex.EncodeToString(sum[:])
}

// vcodeProcessor implements Processor for one-time verification codes:
// compared verbatim, never hashed (the value itself is the secret and is
// discarded after single use by the caller).
type vcodeProcessor struct{}

func (vcodeProcessor) Validate(_, sk string) error {
	if len(sk) == 0 {
		return iamerr.BadRequest("credential", "validate-vcode", "vcode must be non-empty")
	}
	return nil
}
func (vcodeProcessor) Hash(_, sk string) (string, error)           { return sk, nil }
func (vcodeProcessor) Verify(_, stored, candidate string) bool      { return stored == candidate }

// ValidateAgainstRule checks value against a cert-conf regex rule; an empty
// rule means "no constraint".
func ValidateAgainstRule(rule, value string) error {
	if rule == "" {
		return nil
	}
	re, err := regexp.Compile(rule)
	if err != nil {
		return iamerr.Internal("credential", "validate-rule", "cert-conf rule is not a valid regex")
	}
	if !re.MatchString(value) {
		return iamerr.BadRequest("credential", "validate-rule", "value does not satisfy the configured rule")
	}
	return nil
}
