package credential

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/iamerr"
	"github.com/grayforge/keyward/pkg/rbum"
)

// VCodeSender delivers a freshly issued verification code to its holder.
// Concrete SMS/mail senders are external collaborators; deployments plug
// theirs in here.
type VCodeSender interface {
	Send(ctx context.Context, ak, code string) error
}

// LogVCodeSender is the dev fallback: it logs the code instead of
// delivering it.
type LogVCodeSender struct {
	Logger *slog.Logger
}

// Send logs the code at Info.
func (s LogVCodeSender) Send(_ context.Context, ak, code string) error {
	s.Logger.Info("vcode issued (no sender configured)", "ak", ak, "code", code)
	return nil
}

const (
	vcodeLen = 6
	vcodeTTL = 300 * time.Second
)

// SendVCode issues a one-time verification code for ak's dynamic
// credential: generate, store keyed on ak with a short TTL, hand to the
// sender. Re-sending
// before expiry replaces the previous code.
func (s *Service) SendVCode(ctx context.Context, ak string, conf *rbum.CertConf) error {
	if !conf.SkDynamic {
		return iamerr.BadRequest("credential", "send-vcode", "cert-conf is not a dynamic (vcode) kind")
	}
	if _, err := s.store.GetCertByAk(ctx, conf.Kind, ak); err != nil {
		return iamerr.Unauthorized("credential", "send-vcode", "no credential bound to this ak")
	}

	code, err := generateNumericCode(vcodeLen)
	if err != nil {
		return iamerr.Wrap(iamerr.KindInternal, "credential", "send-vcode", "generating code", err)
	}
	if err := s.cache.Set(ctx, cache.VCodeKey(ak), code, vcodeTTL); err != nil {
		return err
	}
	if s.sender != nil {
		if err := s.sender.Send(ctx, ak, code); err != nil {
			return iamerr.Wrap(iamerr.KindInternal, "credential", "send-vcode", "delivering code", err)
		}
	}
	return nil
}

// generateNumericCode returns n random decimal digits.
func generateNumericCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	digits := make([]byte, n)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}
