package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yeremiapane/gaming-portal/models"
)

const (
	UserIssuer  = "gaming-portal"
	StaffIssuer = "gaming-portal-staff"
)

type CustomClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// JWTValidator verifies HS256 tokens minted by one issuer.
type JWTValidator struct {
	secret []byte
	issuer string
}

func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), issuer: issuer}
}

func (v *JWTValidator) Verify(tokenString string) (models.Principal, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.Principal{}, fmt.Errorf("invalid or expired token: %w", err)
	}
	if !token.Valid {
		return models.Principal{}, errors.New("invalid token")
	}

	return models.Principal{
		ID:          claims.UserID,
		Role:        claims.Role,
		DisplayName: claims.Name,
	}, nil
}

// GenerateToken mints a token this validator accepts. Tokens are normally
// issued by the account service; this exists for tooling and tests.
func (v *JWTValidator) GenerateToken(p models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: p.ID,
		Role:   p.Role,
		Name:   p.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
