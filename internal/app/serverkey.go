package app

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
)

// loadOrGenerateServerKey parses pemStr as a PKCS#1 or PKCS#8 RSA private
// key, or generates an ephemeral one for local/dev use when pemStr is
// empty — mirroring pkg/session.GenerateDevSecret's "no operator-provided
// secret" fallback.
func loadOrGenerateServerKey(pemStr string, logger *slog.Logger) (*rsa.PrivateKey, error) {
	if pemStr == "" {
		logger.Info("gateway: using auto-generated dev RSA key (set KEYWARD_SERVER_PRIVATE_KEY in production)")
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("generating dev server key: %w", err)
		}
		return key, nil
	}

	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("decoding server private key: not valid PEM")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing server private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("server private key is not RSA")
	}
	return key, nil
}
