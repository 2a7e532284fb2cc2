package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skillmatch/auth-service/internal/config"
)

func testCodec(secret string) *Codec {
	return NewCodec(config.JWTConfig{
		Secret:          secret,
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	c := testCodec("test-secret-32-bytes-should-be-long-enough")
	tok, jti, exp, err := c.IssueAccess("user-123")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	if jti == "" {
		t.Fatal("expected non-empty jti")
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry should be in the future: %v", exp)
	}

	claims, err := c.Verify(tok, TypeAccess)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.ID != jti {
		t.Fatalf("jti mismatch: got=%s want=%s", claims.ID, jti)
	}
}

func TestIssue_FreshJTIPerIssuance(t *testing.T) {
	c := testCodec("jti-secret-32-bytes-xxxxxxxxxxxxxxxx")
	_, j1, _, err := c.IssueAccess("u1")
	if err != nil {
		t.Fatal(err)
	}
	_, j2, _, err := c.IssueAccess("u1")
	if err != nil {
		t.Fatal(err)
	}
	if j1 == j2 {
		t.Fatalf("expected distinct jti per issuance, got %s twice", j1)
	}
}

func TestVerify_Expired(t *testing.T) {
	c := testCodec("expiry-secret-32-bytes-xxxxxxxxxxxxx")
	tok, _, _, err := c.Issue("u2", TypeAccess, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Verify(tok, TypeAccess)
	if err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerify_WrongType(t *testing.T) {
	c := testCodec("type-secret-32-bytes-xxxxxxxxxxxxxxx")
	tok, _, _, err := c.IssueRefresh("u3", "access-jti-1")
	if err != nil {
		t.Fatal(err)
	}
	// a refresh token must not be accepted where an access token is required
	_, err = c.Verify(tok, TypeAccess)
	if err != ErrWrongTokenType {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
	// but it verifies as a refresh token, carrying the bound access jti
	claims, err := c.Verify(tok, TypeRefresh)
	if err != nil {
		t.Fatalf("unexpected error verifying as refresh: %v", err)
	}
	if claims.AccessJTI != "access-jti-1" {
		t.Fatalf("expected bound access jti, got %q", claims.AccessJTI)
	}
}

func TestVerify_WrongSecretFails(t *testing.T) {
	c := testCodec("secret-one-32-bytes-xxxxxxxxxxxxxxxx")
	tok, _, _, err := c.IssueAccess("u4")
	if err != nil {
		t.Fatal(err)
	}
	other := testCodec("different-secret-xxxxxxxxxxxxxxxxxxx")
	if _, err := other.Verify(tok, TypeAccess); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken with wrong secret, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	c := testCodec("malformed-secret-32-bytes-xxxxxxxxxx")
	if _, err := c.Verify("not.a.jwt", TypeAccess); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}
}

// Tampering with payload must fail signature verification
func TestVerify_TamperedPayload(t *testing.T) {
	c := testCodec("tamper-test-secret-32-bytes-xxxxxxx")
	tok, _, _, err := c.IssueAccess("user-t")
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token parts")
	}
	payloadBytes, _ := jwt.NewParser().DecodeSegment(parts[1])
	payload := strings.Replace(string(payloadBytes), "user-t", "attacker", 1)
	parts[1] = (&jwt.Token{}).EncodeSegment([]byte(payload))
	if _, err := c.Verify(strings.Join(parts, "."), TypeAccess); err != ErrInvalidToken {
		t.Fatalf("expected signature failure for tampered token, got %v", err)
	}
}

// Rejected when alg=none (unsigned token)
func TestVerify_AlgNoneRejected(t *testing.T) {
	headerEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"alg":"none"}`))
	payloadEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"sub":"u-none","jti":"x","type":"access","exp":9999999999}`))
	tok := headerEnc + "." + payloadEnc + "."
	c := testCodec("none-secret-32-bytes-xxxxxxxxxxxxxxx")
	if _, err := c.Verify(tok, TypeAccess); err != ErrInvalidToken {
		t.Fatalf("expected alg=none to be rejected, got %v", err)
	}
}

func TestDecodeJTI(t *testing.T) {
	c := testCodec("decode-secret-32-bytes-xxxxxxxxxxxxx")

	// valid token
	tok, jti, _, err := c.IssueAccess("u5")
	if err != nil {
		t.Fatal(err)
	}
	got, ok := DecodeJTI(tok)
	if !ok || got != jti {
		t.Fatalf("DecodeJTI: got=(%s,%v) want=(%s,true)", got, ok, jti)
	}

	// expired token still decodes (logout must work on expired tokens)
	expired, jti2, _, err := c.Issue("u5", TypeAccess, -time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	got, ok = DecodeJTI(expired)
	if !ok || got != jti2 {
		t.Fatalf("DecodeJTI on expired token: got=(%s,%v) want=(%s,true)", got, ok, jti2)
	}

	// garbage does not
	if _, ok := DecodeJTI("garbage"); ok {
		t.Fatal("expected DecodeJTI to fail on garbage input")
	}
}
