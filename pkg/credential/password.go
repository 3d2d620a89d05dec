package credential

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/grayforge/keyward/pkg/iamerr"
)

// bcryptCost trades hash time against login throughput.
const bcryptCost = 12

func hashBcrypt(sk string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(sk), bcryptCost)
	if err != nil {
		return "", iamerr.Wrap(iamerr.KindInternal, "credential", "hash-password", "hashing password", err)
	}
	return string(h), nil
}

func verifyBcrypt(stored, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
}

// validatePasswordStrength enforces the baseline password rule: at least
// 12 characters, upper and lower case, and a digit or symbol.
func validatePasswordStrength(pw string) error {
	if len(pw) < 12 {
		return iamerr.BadRequest("credential", "validate-password", "password must be at least 12 characters")
	}

	var hasUpper, hasLower, hasDigitOrSymbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			hasDigitOrSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return iamerr.BadRequest("credential", "validate-password", "password must contain at least one uppercase letter")
	case !hasLower:
		return iamerr.BadRequest("credential", "validate-password", "password must contain at least one lowercase letter")
	case !hasDigitOrSymbol:
		return iamerr.BadRequest("credential", "validate-password", "password must contain at least one number or symbol")
	}
	return nil
}
