package identity

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("any-secret-since-signature-is-never-verified"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return signed
}

func TestDecode_ExtractsSubAndEmail(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-123", "email": "user@example.com"})

	id, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if id.Sub != "user-123" || id.Email != "user@example.com" {
		t.Errorf("Decode() = %#v", id)
	}
}

func TestDecode_MissingSubErrors(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"email": "user@example.com"})

	if _, err := Decode(token); err == nil {
		t.Error("expected an error when the sub claim is absent")
	}
}

func TestDecode_MalformedTokenErrors(t *testing.T) {
	if _, err := Decode("not-a-jwt"); err == nil {
		t.Error("expected an error for a malformed token")
	}
}

func TestDecode_MissingEmailIsNotAnError(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-123"})

	id, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if id.Email != "" {
		t.Errorf("Email = %q, want empty", id.Email)
	}
}
