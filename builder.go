package otpgate

import (
	"errors"

	internalaudit "github.com/hexleaf/otpgate/internal/audit"
	"github.com/hexleaf/otpgate/internal/limiters"
	"github.com/hexleaf/otpgate/internal/stores"
	"github.com/hexleaf/otpgate/token"
	"github.com/redis/go-redis/v9"
)

const (
	redisCodePrefix     = "ogc"
	redisIssuancePrefix = "ogi"
)

// Builder assembles an [Engine]. Without [Builder.WithRedis] the engine runs
// on the in-process store and limiter, which is only correct for a single
// process: two replicas with separate memory would each believe they hold
// the sole active code.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identities IdentityProvider
	notifier   Notifier
	auditSink  AuditSink

	built bool
}

// New creates a Builder preloaded with the default policy set.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects the Redis-backed store and issuance limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityProvider wires the host's account lookup. Required.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identities = p
	return b
}

// WithNotifier wires the out-of-band code delivery channel. Required.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink enables auditing into the given sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, constructs the engine, and starts its
// background sweeper. The builder is single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	// A provided sink wins over whatever the config says, regardless of
	// the order the builder methods were called in.
	cfg.Audit.Enabled = b.auditSink != nil
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.identities == nil {
		return nil, errors.New("identity provider required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	tokens, err := token.NewManager(token.Config{
		SigningMethod:   cfg.Token.SigningMethod,
		PrivateKey:      cfg.Token.PrivateKey,
		PublicKey:       cfg.Token.PublicKey,
		Issuer:          cfg.Token.Issuer,
		IntermediateTTL: cfg.Token.IntermediateTTL,
		SessionTTL:      cfg.Token.SessionTTL,
		Leeway:          cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	var (
		store   stores.CodeStore
		limiter limiters.IssuanceLimiter
	)
	issuance := limiters.IssuanceConfig{
		MaxPerWindow: cfg.Issuance.MaxPerWindow,
		Window:       cfg.Issuance.Window,
	}
	if b.redis != nil {
		store = stores.NewRedisStore(b.redis, redisCodePrefix)
		limiter = limiters.NewRedisIssuanceLimiter(b.redis, redisIssuancePrefix, issuance)
	} else {
		store = stores.NewMemoryStore()
		limiter = limiters.NewMemoryIssuanceLimiter(issuance)
	}

	engine := &Engine{
		config:     cfg,
		store:      store,
		limiter:    limiter,
		identities: b.identities,
		notifier:   b.notifier,
		tokens:     tokens,
	}

	if cfg.Metrics.Enabled {
		engine.metrics = NewMetrics(cfg.Metrics)
	}
	if cfg.Audit.Enabled {
		engine.audit = internalaudit.NewDispatcher(internalaudit.DispatcherConfig{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink)
	}

	engine.sweeper = newSweeper(engine, store, cfg.Sweep.Interval)
	engine.sweeper.Start()

	b.built = true
	return engine, nil
}
