package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal identifies an authenticated caller and the clinics it may
// administer. Token issuance lives in the identity service; this package
// only validates.
type Principal struct {
	Subject   string
	ClinicIDs []int64
}

// CanAccessClinic reports whether the principal is entitled to the clinic.
func (p *Principal) CanAccessClinic(clinicID int64) bool {
	for _, id := range p.ClinicIDs {
		if id == clinicID {
			return true
		}
	}
	return false
}

type claims struct {
	ClinicIDs []int64 `json:"clinic_ids"`
	jwt.RegisteredClaims
}

// TokenService validates bearer tokens into principals.
type TokenService interface {
	ValidateToken(token string) (*Principal, error)
}

type tokenService struct {
	secret []byte
}

func NewTokenService(secret string) TokenService {
	return &tokenService{secret: []byte(secret)}
}

func (s *tokenService) ValidateToken(tokenStr string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &Principal{
		Subject:   c.Subject,
		ClinicIDs: c.ClinicIDs,
	}, nil
}

// GenerateToken signs a principal into a token. Exposed for tests and
// local tooling; production tokens come from the identity service.
func GenerateToken(secret string, principal *Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		ClinicIDs: principal.ClinicIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}
