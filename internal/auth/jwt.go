package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the API token payload. SessionID names the persisted
// session slot the token unlocks.
type Claims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Token is a signed access token and its expiry.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// IssueToken signs an HS256 access token for the account's session.
func IssueToken(accountID, sessionID, role, issuer, key string, ttl time.Duration) (Token, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		SessionID: sessionID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

func keyFunc(key string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	}
}

// ParseToken validates a token and returns claims.
func ParseToken(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, keyFunc(key))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.SessionID == "" {
		return Claims{}, errors.New("token carries no session")
	}
	return *claims, nil
}

// ExpiredSession returns the session id of a token that is signed with key by
// issuer but past its expiry. ok is false for any other token.
func ExpiredSession(tokenStr, key, issuer string, now time.Time) (sid string, ok bool) {
	var claims Claims
	if _, err := jwt.ParseWithClaims(tokenStr, &claims, keyFunc(key), jwt.WithoutClaimsValidation()); err != nil {
		return "", false
	}
	if issuer != "" && claims.Issuer != issuer {
		return "", false
	}
	if claims.SessionID == "" || claims.ExpiresAt == nil || now.Before(claims.ExpiresAt.Time) {
		return "", false
	}
	return claims.SessionID, true
}
