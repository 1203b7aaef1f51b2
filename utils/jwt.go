package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agroadvisor/community/config"
)

// TokenIssuer is stamped on every bearer token and required when parsing.
const TokenIssuer = "agroadvisor-community"

const defaultTokenTTL = 72 * time.Hour

var errNoSubject = errors.New("token has no subject")

// Claims carry the account a community bearer token was issued to.
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 session token for the account, valid for ttl.
func GenerateToken(userID uint, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(config.Get().JWTSecret))
}

// ParseToken verifies signature, issuer and expiry and returns the claims.
// A token whose subject does not name an account is rejected.
func ParseToken(tokenStr string) (*Claims, error) {
	secret := []byte(config.Get().JWTSecret)
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.UserID == 0 || claims.Subject != strconv.FormatUint(uint64(claims.UserID), 10) {
		return nil, errNoSubject
	}
	return claims, nil
}

// TokenTTL is the configured session lifetime.
func TokenTTL() time.Duration {
	if hours := config.Get().TokenTTLHours; hours > 0 {
		return time.Duration(hours) * time.Hour
	}
	return defaultTokenTTL
}
