package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/snzark/crm/server/auth/key"
	"golang.org/x/crypto/bcrypt"
)

const (
	SESSION_PURPOSE      = "session"
	VERIFY_EMAIL_PURPOSE = "verify-email"

	SESSION_TTL      = 24 * time.Hour
	VERIFY_EMAIL_TTL = 72 * time.Hour
)

// PasswordHashCost is the bcrypt cost used by HashPassword. Tests lower it.
var PasswordHashCost = 12

type CrmTokenClaims struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	Purpose   string `json:"purpose"`
	jwt.StandardClaims
}

// Session is the authenticated identity of a request.
type Session struct {
	UserID    uint
	Email     string
	FirstName string
	LastName  string
	IsAdmin   bool
}

type sessionContextKey struct{}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordHashCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func EncodeJWT(claims CrmTokenClaims, keyPair *key.KeyPair) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod("RS256"), claims)
	token.Header["kid"] = keyPair.Kid

	tokenString, err := token.SignedString(keyPair.PrivateKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func DecodeJWT(tokenString string, keyPair *key.KeyPair) (*CrmTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CrmTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// validate the alg is what you expect:
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return keyPair.PublicKey, nil
	})

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid jwt: %v", err)
	}

	tokenClaims, ok := token.Claims.(*CrmTokenClaims)
	if !ok {
		return nil, fmt.Errorf("unable to assert token.Claims to CrmTokenClaims")
	}

	return tokenClaims, nil
}

// NewSessionToken issues the login token for a user.
func NewSessionToken(session Session, keyPair *key.KeyPair) (string, error) {
	return EncodeJWT(newClaims(session, SESSION_PURPOSE, SESSION_TTL), keyPair)
}

// NewVerifyEmailToken issues the token embedded in the verification link.
func NewVerifyEmailToken(session Session, keyPair *key.KeyPair) (string, error) {
	return EncodeJWT(newClaims(session, VERIFY_EMAIL_PURPOSE, VERIFY_EMAIL_TTL), keyPair)
}

// DecodeToken decodes tokenString and checks it was issued for purpose.
func DecodeToken(tokenString, purpose string, keyPair *key.KeyPair) (*CrmTokenClaims, error) {
	claims, err := DecodeJWT(tokenString, keyPair)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != purpose {
		return nil, fmt.Errorf("invalid jwt: expected purpose %q got %q", purpose, claims.Purpose)
	}

	return claims, nil
}

// SessionFromClaims converts verified claims into a Session.
func SessionFromClaims(claims *CrmTokenClaims) (Session, error) {
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return Session{}, fmt.Errorf("invalid subject %q: %v", claims.Subject, err)
	}

	return Session{
		UserID:    uint(userID),
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		IsAdmin:   claims.IsAdmin,
	}, nil
}

func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(Session)
	return session, ok
}

func newClaims(session Session, purpose string, ttl time.Duration) CrmTokenClaims {
	now := time.Now()
	return CrmTokenClaims{
		FirstName: session.FirstName,
		LastName:  session.LastName,
		Email:     session.Email,
		IsAdmin:   session.IsAdmin,
		Purpose:   purpose,
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatUint(uint64(session.UserID), 10),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
			Issuer:    "crm",
		},
	}
}
