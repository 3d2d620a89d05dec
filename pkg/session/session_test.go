package session

import (
	"testing"
	"time"
)

func TestUnionStrings(t *testing.T) {
	got := unionStrings([]string{"admin", "viewer"}, []string{"viewer", "editor"})
	want := map[string]bool{"admin": true, "viewer": true, "editor": true}
	if len(got) != len(want) {
		t.Fatalf("unionStrings = %v, want 3 distinct entries", got)
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected entry %q in union", s)
		}
	}
}

func TestIssuerMintAndVerify(t *testing.T) {
	issuer, err := NewIssuer("a-secret-that-is-at-least-32-bytes-long")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	token, err := issuer.Mint(Claims{AccountID: "acc-1", TenantID: "t1", Kind: "bearer"}, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.AccountID != "acc-1" || claims.TenantID != "t1" {
		t.Errorf("Verify returned %+v, want AccountID=acc-1 TenantID=t1", claims)
	}
}

func TestIssuerVerifyRejectsTampered(t *testing.T) {
	issuer, err := NewIssuer("a-secret-that-is-at-least-32-bytes-long")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, err := issuer.Mint(Claims{AccountID: "acc-1"}, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := issuer.Verify(token + "tampered"); err == nil {
		t.Error("expected Verify to reject a tampered token")
	}
}

func TestNewIssuerRejectsShortSecret(t *testing.T) {
	if _, err := NewIssuer("too-short"); err == nil {
		t.Error("expected NewIssuer to reject a secret under 32 bytes")
	}
}
