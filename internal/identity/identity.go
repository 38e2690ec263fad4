// Package identity verifies bearer tokens issued by the hosted
// identity provider. The booking service never issues tokens itself;
// an absent or invalid token simply selects the guest booking path.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdmin   = "admin"
	RoleLab     = "lab"
	RolePatient = "patient"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// Identity is the verified caller: user id plus the role-profile
// fields the front-end shows.
type Identity struct {
	UserID   uuid.UUID
	Role     string
	FullName string
	Phone    string
}

// IsStaff reports whether the identity may advance appointment status
// and upload reports.
func (id *Identity) IsStaff() bool {
	return id != nil && (id.Role == RoleAdmin || id.Role == RoleLab)
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

type claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	role := c.Role
	if role == "" {
		role = RolePatient
	}

	return &Identity{
		UserID:   userID,
		Role:     role,
		FullName: c.FullName,
		Phone:    c.Phone,
	}, nil
}

// MintToken signs a token the verifier accepts. Used by the seed and
// simulate tooling and by tests; production tokens come from the
// identity provider.
func MintToken(secret, issuer string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:     id.Role,
		FullName: id.FullName,
		Phone:    id.Phone,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(secret))
}
