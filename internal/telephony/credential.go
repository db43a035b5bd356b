package telephony

import (
	"crypto/rsa"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer produces the short-lived credential sent with provider requests.
type Signer interface {
	Sign(now time.Time) (string, error)
}

type credentialClaims struct {
	jwt.RegisteredClaims
	ApplicationID string `json:"application_id"`
}

// CredentialSigner issues RS256 application tokens.
type CredentialSigner struct {
	applicationID string
	key           *rsa.PrivateKey
	ttl           time.Duration
}

// NewCredentialSigner parses a PEM private key. Keys pasted into env vars
// with literal "\n" sequences are accepted.
func NewCredentialSigner(applicationID, privateKeyPEM string, ttl time.Duration) (*CredentialSigner, error) {
	if strings.TrimSpace(applicationID) == "" {
		return nil, errors.New("telephony: application id is required")
	}
	pem := strings.ReplaceAll(privateKeyPEM, `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CredentialSigner{applicationID: applicationID, key: key, ttl: ttl}, nil
}

func (s *CredentialSigner) Sign(now time.Time) (string, error) {
	claims := credentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		ApplicationID: s.applicationID,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return t.SignedString(s.key)
}
