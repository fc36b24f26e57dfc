package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/ReviewGo/pkg/middleware"
)

// ErrMissingSubject is returned for tokens that carry no user id.
var ErrMissingSubject = errors.New("token has no subject")

// Claims are the access-token claims issued by the identity provider.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTValidator verifies HS256 access tokens.
type JWTValidator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewJWTValidator creates a validator. An empty issuer disables the issuer check.
func NewJWTValidator(secret, issuer string, leeway time.Duration) *JWTValidator {
	return &JWTValidator{
		secret: []byte(secret),
		issuer: issuer,
		leeway: leeway,
	}
}

// Validate parses tokenString and returns the principal it names. The user
// id is the subject, falling back to the user_id claim.
func (v *JWTValidator) Validate(tokenString string) (*middleware.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}

	userID := claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if userID == "" {
		return nil, ErrMissingSubject
	}

	role := claims.Role
	if role == "" {
		role = middleware.RoleUser
	}

	return &middleware.Claims{
		UserID: userID,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   role,
	}, nil
}

// TokenValidator adapts the validator to the auth middleware.
func (v *JWTValidator) TokenValidator() middleware.TokenValidator {
	return v.Validate
}
