package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// RoleOperator is the only role issued; it may toggle the simulation.
const RoleOperator = "operator"

const tokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingSecret      = errors.New("jwt signing secret is required")
)

type Service interface {
	Login(ctx context.Context, username, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (subject, role string, err error)
}

// Operator holds the single configured operator identity.
type Operator struct {
	Username     string
	PasswordHash string
}

type service struct {
	op     Operator
	secret []byte
	now    func() time.Time
}

func NewService(op Operator, secret string) (*service, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &service{op: op, secret: []byte(secret), now: time.Now}, nil
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// HashPassword returns the bcrypt hash to put in HEC_OPERATOR_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *service) Login(_ context.Context, username, password string) (string, error) {
	if s.op.PasswordHash == "" {
		return "", ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.op.Username)) == 1
	if err := bcrypt.CompareHashAndPassword([]byte(s.op.PasswordHash), []byte(password)); err != nil || !userOK {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(s.op.Username, RoleOperator)
}

func (s *service) issueToken(subject, role string) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(_ context.Context, token string) (string, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid || c.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return c.Subject, c.Role, nil
}
