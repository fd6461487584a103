package otpgate

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	reset, ok := cfg.Codes[PurposePasswordReset]
	if !ok {
		t.Fatal("default config misses password reset policy")
	}
	if reset.Alphabet != AlphabetHex || reset.Length != 10 || reset.TTL != 15*time.Minute {
		t.Fatalf("unexpected reset policy: %+v", reset)
	}
	if reset.Tier != TierIntermediate {
		t.Fatalf("reset must mint intermediate credentials, got %q", reset.Tier)
	}

	login := cfg.Codes[PurposeLoginVerification]
	if login.Length != 6 || login.TTL != 10*time.Minute || login.Tier != TierSession {
		t.Fatalf("unexpected login policy: %+v", login)
	}
}

func TestConfigValidateRejectsBadPolicies(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no purposes", func(c *Config) { c.Codes = nil }},
		{"short code", func(c *Config) {
			c.Codes[PurposeLoginVerification] = CodePolicy{Alphabet: AlphabetNumeric, Length: 3, TTL: time.Minute, Tier: TierSession}
		}},
		{"long code", func(c *Config) {
			c.Codes[PurposeLoginVerification] = CodePolicy{Alphabet: AlphabetNumeric, Length: 40, TTL: time.Minute, Tier: TierSession}
		}},
		{"zero TTL", func(c *Config) {
			c.Codes[PurposeLoginVerification] = CodePolicy{Alphabet: AlphabetNumeric, Length: 6, Tier: TierSession}
		}},
		{"bad tier", func(c *Config) {
			c.Codes[PurposeLoginVerification] = CodePolicy{Alphabet: AlphabetNumeric, Length: 6, TTL: time.Minute, Tier: CredentialTier("root")}
		}},
		{"bad alphabet", func(c *Config) {
			c.Codes[PurposeLoginVerification] = CodePolicy{Alphabet: Alphabet(9), Length: 6, TTL: time.Minute, Tier: TierSession}
		}},
		{"zero lockout attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }},
		{"zero lockout duration", func(c *Config) { c.Lockout.Duration = 0 }},
		{"zero issuance cap", func(c *Config) { c.Issuance.MaxPerWindow = 0 }},
		{"zero issuance window", func(c *Config) { c.Issuance.Window = 0 }},
		{"zero notify timeout", func(c *Config) { c.Notify.Timeout = 0 }},
		{"zero sweep interval", func(c *Config) { c.Sweep.Interval = 0 }},
		{"negative retention", func(c *Config) { c.Sweep.ExpiredRetention = -time.Minute }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestCloneConfigIsolatesCaller(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	clone := cloneConfig(cfg)

	cfg.Codes[PurposeLoginVerification] = CodePolicy{Alphabet: AlphabetNumeric, Length: 8, TTL: time.Minute, Tier: TierSession}
	cfg.Token.PrivateKey[0] = 'X'

	if clone.Codes[PurposeLoginVerification].Length != 6 {
		t.Fatal("clone shares the policy map with the caller")
	}
	if clone.Token.PrivateKey[0] == 'X' {
		t.Fatal("clone shares key material with the caller")
	}
}
