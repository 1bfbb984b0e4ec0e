package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role decides what an operator may do. Viewers read; treasurers also post.
type Role string

const (
	RoleViewer    Role = "viewer"
	RoleTreasurer Role = "treasurer"
)

func (r Role) IsValid() bool {
	return r == RoleViewer || r == RoleTreasurer
}

func (r Role) CanPost() bool {
	return r == RoleTreasurer
}

type Claims struct {
	Operator string
	Role     Role
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

const issuer = "backoffice-ledger"

// GenerateToken signs an operator token. The operator name becomes the subject and is
// recorded as the actor of every operation posted with the token.
func GenerateToken(operator string, role Role, secret string, expiry time.Duration) (string, error) {
	if operator == "" {
		return "", fmt.Errorf("GenerateToken: operator is required")
	}
	if !role.IsValid() {
		return "", fmt.Errorf("GenerateToken: unknown role %q", role)
	}

	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateToken: invalid token claims")
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("ValidateToken: token has no subject")
	}
	role := Role(tc.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("ValidateToken: unknown role %q", tc.Role)
	}

	return &Claims{Operator: tc.Subject, Role: role}, nil
}
