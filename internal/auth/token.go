package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/hearthquest/internal/model"
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenTTL is how long a paired device's token stays valid. Pairing is
// a one-time act per device, so tokens are long-lived.
const DefaultTokenTTL = 90 * 24 * time.Hour

type deviceClaims struct {
	FamilyID  int64      `json:"fid"`
	ProfileID int64      `json:"pid"`
	Role      model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies the signed device tokens handed out at
// pairing time. Tokens are stateless: revocation happens by rotating the
// child's invite code and re-pairing.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for a paired device.
func (i *TokenIssuer) Issue(familyID, profileID int64, role model.Role) (string, error) {
	now := time.Now()
	claims := deviceClaims{
		FamilyID:  familyID,
		ProfileID: profileID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and returns the auth context it carries.
func (i *TokenIssuer) Verify(tokenString string) (AuthContext, error) {
	var claims deviceClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return AuthContext{}, ErrInvalidToken
	}
	if claims.FamilyID == 0 || claims.ProfileID == 0 {
		return AuthContext{}, ErrInvalidToken
	}

	return AuthContext{
		FamilyID:  claims.FamilyID,
		ProfileID: claims.ProfileID,
		Role:      claims.Role,
	}, nil
}
