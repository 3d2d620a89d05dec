package credential

import "testing"

func TestAkSkProcessorRoundTrip(t *testing.T) {
	p := akSkProcessor{}
	hashed, err := p.Hash("ak-1", "topsecret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !p.Verify("ak-1", hashed, "topsecret") {
		t.Error("expected Verify to accept the original sk")
	}
	if p.Verify("ak-1", hashed, "wrong") {
		t.Error("expected Verify to reject a different sk")
	}
}

func TestPasswordProcessorRoundTrip(t *testing.T) {
	p := passwordProcessor{}
	if err := p.Validate("", "short"); err == nil {
		t.Fatal("expected a short password to fail validation")
	}
	if err := p.Validate("", "GoodPassw0rd!"); err != nil {
		t.Fatalf("expected a strong password to validate, got %v", err)
	}
	hashed, err := p.Hash("", "GoodPassw0rd!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !p.Verify("", hashed, "GoodPassw0rd!") {
		t.Error("expected Verify to accept the original password")
	}
	if p.Verify("", hashed, "WrongPassw0rd!") {
		t.Error("expected Verify to reject a different password")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name    string
		pw      string
		wantErr bool
	}{
		{"too short", "Ab1!", true},
		{"no upper", "alllowercase1!", true},
		{"no lower", "ALLUPPERCASE1!", true},
		{"no digit or symbol", "NoDigitsOrSymbolsHere", true},
		{"valid", "GoodPassw0rd!", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validatePasswordStrength(c.pw)
			if (err != nil) != c.wantErr {
				t.Errorf("validatePasswordStrength(%q) error = %v, wantErr %v", c.pw, err, c.wantErr)
			}
		})
	}
}

func TestValidateAgainstRule(t *testing.T) {
	if err := ValidateAgainstRule(`^[a-z0-9]{6,}$`, "abc123"); err != nil {
		t.Errorf("expected matching value to pass: %v", err)
	}
	if err := ValidateAgainstRule(`^[a-z0-9]{6,}$`, "AB"); err == nil {
		t.Error("expected non-matching value to fail")
	}
	if err := ValidateAgainstRule("", "anything"); err != nil {
		t.Errorf("expected empty rule to impose no constraint: %v", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	if _, err := r.For(KindUserPwd); err != nil {
		t.Errorf("expected user-pwd processor to be registered: %v", err)
	}
	if _, err := r.For("unknown-kind"); err == nil {
		t.Error("expected lookup of an unregistered kind to fail")
	}
}
