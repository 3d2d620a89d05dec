package credential

import (
	"context"
	"time"

	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/iamerr"
	"github.com/grayforge/keyward/pkg/rbum"
)

// Service implements the credential engine on top of a pkg/rbum.Store, a Registry of
// per-kind processors, a LockTracker for the sk mismatch lockout, and the
// cache holding live vcodes.
type Service struct {
	store    *rbum.Store
	registry *Registry
	lock     *LockTracker
	cache    *cache.Cache
	sender   VCodeSender
}

// NewService wires the credential engine's dependencies. sender may be nil
// when the deployment has no vcode delivery channel.
func NewService(store *rbum.Store, registry *Registry, lock *LockTracker, c *cache.Cache, sender VCodeSender) *Service {
	return &Service{store: store, registry: registry, lock: lock, cache: c, sender: sender}
}

// AddCertReq is the input to AddCert.
type AddCertReq struct {
	Ak              string
	Sk              string
	Kind            string
	Supplier        string
	RelRbumKind     rbum.RelRbumKind
	RelRbumID       string
	RelRbumCertConfID string
	OwnPaths        string
	Owner           string
	ScopeLevel      rbum.ScopeLevel
}

// AddCert resolves the governing cert-conf, validates ak/sk against its
// rules and the kind processor, hashes sk per the processor, applies the
// effective expiry, and inserts the cert instance.
func (s *Service) AddCert(ctx context.Context, req AddCertReq) (*rbum.Cert, error) {
	conf, err := s.store.GetCertConf(ctx, req.RelRbumCertConfID)
	if err != nil {
		return nil, err
	}
	if conf.Kind != req.Kind {
		return nil, iamerr.BadRequest("credential", "add-cert", "cert-conf kind does not match requested kind")
	}

	if err := ValidateAgainstRule(conf.AkRule, req.Ak); err != nil {
		return nil, err
	}

	if conf.SkDynamic {
		if req.Sk != "" {
			return nil, iamerr.BadRequest("credential", "add-cert", "sk must not be supplied for a dynamic (vcode) credential")
		}
	} else if err := ValidateAgainstRule(conf.SkRule, req.Sk); err != nil {
		return nil, err
	}

	proc, err := s.registry.For(req.Kind)
	if err != nil {
		return nil, err
	}
	if !conf.SkDynamic {
		if err := proc.Validate(req.Ak, req.Sk); err != nil {
			return nil, err
		}
	}

	storedSk := req.Sk
	if conf.SkEncrypted {
		storedSk, err = proc.Hash(req.Ak, req.Sk)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	endTime := now.Add(time.Duration(conf.ExpireSec) * time.Second)
	status := rbum.CertEnabled
	if conf.SkDynamic {
		endTime = now.Add(time.Duration(rbum.DynamicExpirySeconds) * time.Second)
		status = rbum.CertPending
	}

	confID := conf.ID
	cert, err := s.store.AddCert(ctx, rbum.AddCertReq{
		Ak:                req.Ak,
		Sk:                storedSk,
		Kind:              req.Kind,
		Supplier:          req.Supplier,
		StartTime:         now,
		EndTime:           endTime,
		Status:            status,
		RelRbumCertConfID: &confID,
		RelRbumKind:       req.RelRbumKind,
		RelRbumID:         req.RelRbumID,
		OwnPaths:          req.OwnPaths,
		Owner:             req.Owner,
		ScopeLevel:        req.ScopeLevel,
	}, conf.Repeatable)
	if err != nil {
		return nil, err
	}

	if conf.SkDynamic {
		if err := s.SendVCode(ctx, req.Ak, conf); err != nil {
			return nil, err
		}
	}
	return cert, nil
}

// Validate checks a presented ak/sk against its stored credential:
// look up the cert, check the time window, verify sk via the kind's
// processor, apply lockout bookkeeping on mismatch, and activate a
// Pending cert on first successful match.
func (s *Service) Validate(ctx context.Context, ak, sk string, conf *rbum.CertConf) (*rbum.Cert, error) {
	cert, err := s.store.GetCertByAk(ctx, conf.Kind, ak)
	if err != nil {
		return nil, err
	}
	if cert.Status == rbum.CertDisabled {
		return nil, iamerr.Unauthorized("credential", "validate", "credential is disabled")
	}

	locked, err := s.lock.Locked(ctx, ak)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, iamerr.Unauthorized("credential", "validate", "ak is locked")
	}

	now := time.Now().UTC()
	if now.Before(cert.StartTime) || now.After(cert.EndTime) {
		return nil, iamerr.Unauthorized("credential", "validate", "credential is outside its validity window")
	}

	if conf.SkDynamic {
		// Dynamic certs verify against the live vcode, not the cert row.
		stored, err := s.cache.Get(ctx, cache.VCodeKey(ak))
		if err == cache.ErrMiss {
			return nil, iamerr.Unauthorized("credential", "validate", "vcode expired or never issued")
		}
		if err != nil {
			return nil, err
		}
		if stored != sk {
			if lockErr := s.lock.RecordMismatch(ctx, ak, conf.SkLockCycleSec, conf.SkLockErrTimes, conf.SkLockDurationSec); lockErr != nil {
				return nil, lockErr
			}
			return nil, iamerr.Unauthorized("credential", "validate", "vcode does not match")
		}
		if err := s.cache.Del(ctx, cache.VCodeKey(ak)); err != nil {
			return nil, err
		}
	} else {
		proc, err := s.registry.For(conf.Kind)
		if err != nil {
			return nil, err
		}
		if !proc.Verify(ak, cert.Sk, sk) {
			if lockErr := s.lock.RecordMismatch(ctx, ak, conf.SkLockCycleSec, conf.SkLockErrTimes, conf.SkLockDurationSec); lockErr != nil {
				return nil, lockErr
			}
			return nil, iamerr.Unauthorized("credential", "validate", "sk does not match")
		}
	}

	if err := s.lock.Reset(ctx, ak); err != nil {
		return nil, err
	}

	if cert.Status == rbum.CertPending {
		if err := s.store.SetCertStatus(ctx, cert.ID, rbum.CertEnabled); err != nil {
			return nil, err
		}
		cert.Status = rbum.CertEnabled
	}

	return cert, nil
}
