package identity_test

import (
	"strings"
	"testing"
	"time"

	"github.com/jmerrifield20/recordchain/internal/identity"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestTokenIssuer(t *testing.T, ttl time.Duration) *identity.TokenIssuer {
	t.Helper()
	ti, err := identity.NewTokenIssuer(testSecret, "http://localhost:5000", ttl)
	if err != nil {
		t.Fatal(err)
	}
	return ti
}

func TestNewTokenIssuer_shortSecret(t *testing.T) {
	if _, err := identity.NewTokenIssuer([]byte("short"), "x", time.Hour); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestTokenIssuer_Issue(t *testing.T) {
	ti := newTestTokenIssuer(t, time.Hour)

	token, err := ti.Issue("clinic-frontdesk", []string{identity.ScopeUpload})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected 3-part JWT, got %d parts", len(parts))
	}
}

func TestTokenIssuer_Verify_valid(t *testing.T) {
	ti := newTestTokenIssuer(t, time.Hour)

	token, err := ti.Issue("clinic-frontdesk", []string{identity.ScopeUpload})
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "clinic-frontdesk" {
		t.Errorf("Subject: got %q", claims.Subject)
	}
	if !claims.HasScope(identity.ScopeUpload) {
		t.Errorf("Scopes: got %v, want %s", claims.Scopes, identity.ScopeUpload)
	}
	if claims.HasScope("records:delete") {
		t.Error("HasScope reported a scope that was not granted")
	}
}

func TestTokenIssuer_Verify_expired(t *testing.T) {
	ti := newTestTokenIssuer(t, time.Nanosecond)
	token, err := ti.Issue("clinic-frontdesk", nil)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)

	if _, err := ti.Verify(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestTokenIssuer_Verify_wrongSecret(t *testing.T) {
	ti := newTestTokenIssuer(t, time.Hour)
	token, _ := ti.Issue("clinic-frontdesk", nil)

	other, err := identity.NewTokenIssuer([]byte("ffffffffffffffffffffffffffffffff"), "http://localhost:5000", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Error("expected error for token signed with a different secret")
	}
}

func TestTokenIssuer_Verify_garbage(t *testing.T) {
	ti := newTestTokenIssuer(t, time.Hour)
	if _, err := ti.Verify("not.a.token"); err == nil {
		t.Error("expected error for malformed token")
	}
}
