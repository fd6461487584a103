package otpgate

import (
	"errors"
	"fmt"
	"time"

	"github.com/hexleaf/otpgate/token"
)

// Alphabet selects the character set codes are drawn from.
type Alphabet int

const (
	// AlphabetNumeric draws from the decimal digits.
	AlphabetNumeric Alphabet = iota
	// AlphabetUnambiguous draws from mixed-case letters and digits with
	// visually confusable characters removed.
	AlphabetUnambiguous
	// AlphabetHex draws from uppercase hexadecimal characters.
	AlphabetHex
)

// CodePolicy controls code shape, lifetime, and the credential tier minted
// when a code for this purpose verifies.
type CodePolicy struct {
	Alphabet Alphabet
	Length   int
	TTL      time.Duration
	Tier     CredentialTier
}

// LockoutConfig bounds failed verification attempts per outstanding code.
// Reaching MaxAttempts locks the key for Duration; a fresh send replaces the
// record and with it the lock.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

// IssuanceConfig caps code sends per (identity, purpose) key per window,
// independent of the already-sent gate.
type IssuanceConfig struct {
	MaxPerWindow int
	Window       time.Duration
}

// NotifyConfig bounds each notifier call.
type NotifyConfig struct {
	Timeout time.Duration
}

// SweepConfig controls the background expiry sweep. ExpiredRetention is how
// long an expired record stays visible (reporting expired rather than not
// found) before collection.
type SweepConfig struct {
	Interval         time.Duration
	ExpiredRetention time.Duration
}

// TokenConfig holds signing material and credential lifetimes; it maps onto
// [token.Config] at Build.
type TokenConfig struct {
	SigningMethod   token.SigningMethod
	PrivateKey      []byte
	PublicKey       []byte
	Issuer          string
	IntermediateTTL time.Duration
	SessionTTL      time.Duration
	Leeway          time.Duration
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls metric collection.
type MetricsConfig struct {
	Enabled bool
}

// Config is the full engine configuration. Treat as immutable after Build.
type Config struct {
	// Codes maps each enabled purpose to its policy. A purpose absent from
	// the map is rejected with [ErrUnknownPurpose].
	Codes map[Purpose]CodePolicy

	Lockout  LockoutConfig
	Issuance IssuanceConfig
	Notify   NotifyConfig
	Sweep    SweepConfig
	Token    TokenConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// DefaultConfig returns the stock policy set: six-digit numeric codes with a
// ten minute lifetime for every purpose except password reset, which uses a
// ten character hex code valid for fifteen minutes. Signing material is not
// defaulted and must be supplied before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Codes: map[Purpose]CodePolicy{
			PurposeEmailVerification: {Alphabet: AlphabetNumeric, Length: 6, TTL: 10 * time.Minute, Tier: TierIntermediate},
			PurposeLoginVerification: {Alphabet: AlphabetNumeric, Length: 6, TTL: 10 * time.Minute, Tier: TierSession},
			PurposeRegistration:      {Alphabet: AlphabetNumeric, Length: 6, TTL: 10 * time.Minute, Tier: TierSession},
			PurposePasswordReset:     {Alphabet: AlphabetHex, Length: 10, TTL: 15 * time.Minute, Tier: TierIntermediate},
		},
		Lockout: LockoutConfig{
			MaxAttempts: 3,
			Duration:    15 * time.Minute,
		},
		Issuance: IssuanceConfig{
			MaxPerWindow: 3,
			Window:       time.Hour,
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
		},
		Sweep: SweepConfig{
			Interval:         5 * time.Minute,
			ExpiredRetention: 15 * time.Minute,
		},
		Token: TokenConfig{
			SigningMethod:   token.MethodEd25519,
			IntermediateTTL: 15 * time.Minute,
			SessionTTL:      7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Validate checks policy bounds. Token key material is validated separately
// by [token.NewManager] during Build.
func (c *Config) Validate() error {
	if len(c.Codes) == 0 {
		return errors.New("at least one purpose policy required")
	}
	for purpose, policy := range c.Codes {
		if policy.Length < 4 || policy.Length > 32 {
			return fmt.Errorf("purpose %s: code length must be 4..32", purpose)
		}
		if policy.TTL <= 0 {
			return fmt.Errorf("purpose %s: code TTL must be positive", purpose)
		}
		if policy.Tier != TierIntermediate && policy.Tier != TierSession {
			return fmt.Errorf("purpose %s: invalid credential tier", purpose)
		}
		switch policy.Alphabet {
		case AlphabetNumeric, AlphabetUnambiguous, AlphabetHex:
		default:
			return fmt.Errorf("purpose %s: invalid alphabet", purpose)
		}
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("lockout max attempts must be at least 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.Issuance.MaxPerWindow < 1 {
		return errors.New("issuance max per window must be at least 1")
	}
	if c.Issuance.Window <= 0 {
		return errors.New("issuance window must be positive")
	}
	if c.Notify.Timeout <= 0 {
		return errors.New("notify timeout must be positive")
	}
	if c.Sweep.Interval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if c.Sweep.ExpiredRetention < 0 {
		return errors.New("expired retention must not be negative")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg

	out.Codes = make(map[Purpose]CodePolicy, len(cfg.Codes))
	for purpose, policy := range cfg.Codes {
		out.Codes[purpose] = policy
	}

	if cfg.Token.PrivateKey != nil {
		out.Token.PrivateKey = append([]byte(nil), cfg.Token.PrivateKey...)
	}
	if cfg.Token.PublicKey != nil {
		out.Token.PublicKey = append([]byte(nil), cfg.Token.PublicKey...)
	}

	return out
}

func (c *Config) policyFor(purpose Purpose) (CodePolicy, bool) {
	policy, ok := c.Codes[purpose]
	return policy, ok
}
