package core

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication schemes accepted by the HTTP transport and REST API.
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
	AuthJWT    = "jwt"
)

// JWTIssuer is the issuer claim written into and required from tokens.
const JWTIssuer = "tripcarbon"

// authDelay pads every authentication attempt.
const authDelay = time.Millisecond

// SecureCompareString compares two strings in constant time.
func SecureCompareString(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidAuthType reports whether t names a supported scheme.
func ValidAuthType(t string) bool {
	switch t {
	case AuthNone, AuthBearer, AuthBasic, AuthJWT:
		return true
	}
	return false
}

var weakTokens = []string{
	"password", "secret", "token", "admin", "test", "default",
	"12345", "123456", "password123", "secret123", "admin123",
}

// ValidateAuthToken rejects empty, short and obviously guessable tokens.
// The same check applies to JWT signing secrets.
func ValidateAuthToken(token string) error {
	if token == "" {
		return NewError(ErrInvalidParameter, "Authentication token cannot be empty").
			WithGuidance("Provide a valid authentication token.")
	}

	if len(token) < 16 {
		return NewError(ErrInvalidParameter, "Authentication token is too short").
			WithGuidance("Use a token with at least 16 characters.")
	}

	lower := strings.ToLower(token)
	for _, weak := range weakTokens {
		if strings.Contains(lower, weak) {
			return NewError(ErrInvalidParameter, "Authentication token appears to be weak").
				WithGuidance("Use a randomly generated authentication token.")
		}
	}

	return nil
}

// AuthResult represents the result of authentication
type AuthResult struct {
	Authorized bool
	Subject    string
	Error      string
	Duration   time.Duration
}

func denied(start time.Time, msg string) AuthResult {
	return AuthResult{Error: msg, Duration: time.Since(start)}
}

func granted(start time.Time, subject string) AuthResult {
	return AuthResult{Authorized: true, Subject: subject, Duration: time.Since(start)}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "Missing Authorization header"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "Invalid Authorization header format"
	}
	return parts[1], ""
}

// AuthenticateBearer checks a static bearer token.
func AuthenticateBearer(authHeader, expectedToken string) AuthResult {
	start := time.Now()
	defer time.Sleep(authDelay)

	token, problem := bearerToken(authHeader)
	if problem != "" {
		return denied(start, problem)
	}

	if !SecureCompareString(token, expectedToken) {
		return denied(start, "Invalid bearer token")
	}

	return granted(start, "")
}

// AuthenticateBasic checks username:password against the configured credentials.
func AuthenticateBasic(username, password, expectedCredentials string) AuthResult {
	start := time.Now()
	defer time.Sleep(authDelay)

	if username == "" || password == "" {
		return denied(start, "Missing basic auth credentials")
	}

	if !SecureCompareString(username+":"+password, expectedCredentials) {
		return denied(start, "Invalid basic auth credentials")
	}

	return granted(start, username)
}

// AuthenticateJWT verifies an HS256 bearer JWT signed with secret. The token
// must carry an expiry and the tripcarbon issuer.
func AuthenticateJWT(authHeader, secret string) AuthResult {
	start := time.Now()
	defer time.Sleep(authDelay)

	raw, problem := bearerToken(authHeader)
	if problem != "" {
		return denied(start, problem)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(JWTIssuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return denied(start, "Token expired")
	case err != nil || !token.Valid:
		return denied(start, "Invalid token")
	}

	return granted(start, claims.Subject)
}

// IssueJWT signs an HS256 token for subject that expires after ttl.
func IssueJWT(subject, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", NewError(ErrInvalidParameter, "JWT secret cannot be empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    JWTIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Authenticate dispatches to the scheme named by authType. For basic auth
// header is ignored and username/password are used.
func Authenticate(authType, header, username, password, credential string) AuthResult {
	switch authType {
	case AuthNone:
		return AuthResult{Authorized: true}
	case AuthBearer:
		return AuthenticateBearer(header, credential)
	case AuthBasic:
		return AuthenticateBasic(username, password, credential)
	case AuthJWT:
		return AuthenticateJWT(header, credential)
	default:
		return AuthResult{Error: "Unknown auth type"}
	}
}
