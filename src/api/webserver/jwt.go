package webserver

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/errors"
)

// SessionTTL is how long a wallet login stays valid.
const SessionTTL = 24 * time.Hour

type sessionClaims struct {
	DRep string `json:"drep"`
	jwt.RegisteredClaims
}

func issueJWT(drepID string, secret []byte, now time.Time) (string, error) {
	claims := sessionClaims{
		DRep: drepID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   drepID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseJWT(raw string, secret []byte, now time.Time) (string, error) {
	var claims sessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil || !tok.Valid {
		return "", errors.Unauthorizedf("session token")
	}
	if claims.DRep == "" {
		return "", errors.Unauthorizedf("session token without drep")
	}
	return claims.DRep, nil
}
