package token

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the credential signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// Tier distinguishes short-lived intermediate credentials from long-lived
// session credentials.
type Tier string

const (
	TierIntermediate Tier = "intermediate"
	TierSession      Tier = "session"
)

var (
	// ErrPurposeMismatch indicates the credential was minted for a different
	// purpose than the caller expects.
	ErrPurposeMismatch = errors.New("credential purpose mismatch")
	// ErrInvalidCredential covers malformed, mis-signed, or expired tokens.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Config holds signing material and credential lifetimes.
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey: ed25519 seed/private key (raw or PKCS#8 PEM) or the HMAC
	// secret for hs256.
	PrivateKey []byte
	// PublicKey: ed25519 public key (raw or PKIX PEM); unused for hs256.
	PublicKey []byte

	Issuer          string
	IntermediateTTL time.Duration
	SessionTTL      time.Duration
	Leeway          time.Duration
}

// Claims is the credential payload. Purpose and Tier are embedded so no
// store lookup is needed to scope-check a credential.
type Claims struct {
	Identity string `json:"idy"`
	Purpose  string `json:"pur"`
	Tier     Tier   `json:"tir"`
	jwt.RegisteredClaims
}

// Manager issues and verifies credentials. Immutable after NewManager.
type Manager struct {
	config     Config
	signKey    any
	verifyKey  any
	signMethod jwt.SigningMethod
}

// NewManager validates the config and key material up front so every later
// Issue/Verify is a pure signing operation.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.IntermediateTTL <= 0 || cfg.SessionTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.SessionTTL > 30*24*time.Hour {
		return nil, errors.New("session TTL exceeds 30 days")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	m := &Manager{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
		m.signMethod = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey

	case MethodEd25519:
		m.signMethod = jwt.SigningMethodEdDSA
		var private ed25519.PrivateKey
		if len(cfg.PrivateKey) > 0 {
			key, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			private = key
			m.signKey = key
		}
		switch {
		case len(cfg.PublicKey) > 0:
			key, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = key
		case private != nil:
			m.verifyKey = private.Public().(ed25519.PublicKey)
		default:
			return nil, errors.New("ed25519 requires a private or public key")
		}

	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// Issue mints a credential binding identity to purpose for the tier's
// lifetime and returns it with its expiry.
func (m *Manager) Issue(identity, purpose string, tier Tier) (string, time.Time, error) {
	if m.signKey == nil {
		return "", time.Time{}, errors.New("manager has no signing key")
	}

	ttl := m.config.IntermediateTTL
	if tier == TierSession {
		ttl = m.config.SessionTTL
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Identity: identity,
		Purpose:  purpose,
		Tier:     tier,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(m.signMethod, claims).SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry, then enforces that the credential was
// minted for wantPurpose. Pass "" to skip the purpose check (callers that
// route on Claims.Purpose themselves).
func (m *Manager) Verify(tokenStr, wantPurpose string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.signMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidCredential
	}
	if wantPurpose != "" && claims.Purpose != wantPurpose {
		return nil, ErrPurposeMismatch
	}
	return claims, nil
}

func parseEdPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	if block, _ := pem.Decode(raw); block != nil {
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse ed25519 private key: %w", err)
		}
		key, ok := parsed.(ed25519.PrivateKey)
		if !ok {
			return nil, errors.New("pem block is not an ed25519 private key")
		}
		return key, nil
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.New("invalid ed25519 private key size")
	}
}

func parseEdPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if block, _ := pem.Decode(raw); block != nil {
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse ed25519 public key: %w", err)
		}
		key, ok := parsed.(ed25519.PublicKey)
		if !ok {
			return nil, errors.New("pem block is not an ed25519 public key")
		}
		return key, nil
	}

	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 public key size")
	}
	return ed25519.PublicKey(raw), nil
}
