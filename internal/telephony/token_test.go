package telephony

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenIssuer_VoiceGrant(t *testing.T) {
	now := time.Now()
	iss := AccessTokenIssuer{
		AccountSID: "AC1", APIKeySID: "SK1", APIKeySecret: "secret", TwiMLAppSID: "AP1",
		TTL: time.Hour, AllowIncoming: true,
	}
	signed, exp, err := iss.Issue("sp-1", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", exp)
	}

	var claims accessTokenClaims
	tok, err := jwt.ParseWithClaims(signed, &claims, func(*jwt.Token) (any, error) { return []byte("secret"), nil })
	if err != nil || !tok.Valid {
		t.Fatalf("parse: %v", err)
	}
	if tok.Header["cty"] != "twilio-fpa;v=1" {
		t.Fatalf("missing cty header: %v", tok.Header)
	}
	if claims.Issuer != "SK1" || claims.Subject != "AC1" {
		t.Fatalf("unexpected iss/sub %q %q", claims.Issuer, claims.Subject)
	}
	if claims.Grants.Identity != "sp-1" || claims.Grants.Voice == nil || claims.Grants.Voice.Outgoing.ApplicationSID != "AP1" || !claims.Grants.Voice.Incoming.Allow {
		t.Fatalf("unexpected grants %+v", claims.Grants)
	}
}

func TestAccessTokenIssuer_NotConfigured(t *testing.T) {
	if _, _, err := (AccessTokenIssuer{}).Issue("sp-1", time.Now()); err != ErrTokenNotConfigured {
		t.Fatalf("expected ErrTokenNotConfigured, got %v", err)
	}
}
