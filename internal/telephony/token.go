package telephony

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenIssuer mints Twilio access tokens carrying a Voice grant for the
// browser softphone. The identity must match the <Client> identity the router
// bridges inbound calls to.
type AccessTokenIssuer struct {
	AccountSID    string
	APIKeySID     string
	APIKeySecret  string
	TwiMLAppSID   string
	TTL           time.Duration
	AllowIncoming bool
}

type voiceGrant struct {
	Incoming *voiceIncoming `json:"incoming,omitempty"`
	Outgoing *voiceOutgoing `json:"outgoing,omitempty"`
}

type voiceIncoming struct {
	Allow bool `json:"allow"`
}

type voiceOutgoing struct {
	ApplicationSID string `json:"application_sid"`
}

type grants struct {
	Identity string      `json:"identity"`
	Voice    *voiceGrant `json:"voice,omitempty"`
}

type accessTokenClaims struct {
	Grants grants `json:"grants"`
	jwt.RegisteredClaims
}

var ErrTokenNotConfigured = errors.New("telephony: voice token issuer not configured")

// Issue returns a signed token and its expiry.
func (i AccessTokenIssuer) Issue(identity string, now time.Time) (string, time.Time, error) {
	if i.AccountSID == "" || i.APIKeySID == "" || i.APIKeySecret == "" || i.TwiMLAppSID == "" {
		return "", time.Time{}, ErrTokenNotConfigured
	}
	if identity == "" {
		return "", time.Time{}, errors.New("telephony: identity required")
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	exp := now.Add(ttl)

	claims := accessTokenClaims{
		Grants: grants{
			Identity: identity,
			Voice: &voiceGrant{
				Incoming: &voiceIncoming{Allow: i.AllowIncoming},
				Outgoing: &voiceOutgoing{ApplicationSID: i.TwiMLAppSID},
			},
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("%s-%d", i.APIKeySID, now.Unix()),
			Issuer:    i.APIKeySID,
			Subject:   i.AccountSID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["cty"] = "twilio-fpa;v=1"
	signed, err := tok.SignedString([]byte(i.APIKeySecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
