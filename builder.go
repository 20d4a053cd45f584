package stepAuth

import (
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/stepAuth/internal/audit"
	"github.com/MrEthical07/stepAuth/internal/limiters"
	"github.com/MrEthical07/stepAuth/internal/rate"
	"github.com/MrEthical07/stepAuth/internal/stores"
	"github.com/MrEthical07/stepAuth/jwt"
	"github.com/MrEthical07/stepAuth/password"
	"github.com/MrEthical07/stepAuth/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts  AccountStore
	tokens    TokenStore
	rateStore RateLimitStore
	notifier  Notifier
	logger    *zap.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is deep-copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the token store and rate-limit windows with Redis unless
// explicit stores are supplied.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountStore(s AccountStore) *Builder {
	b.accounts = s
	return b
}

func (b *Builder) WithTokenStore(s TokenStore) *Builder {
	b.tokens = s
	return b
}

func (b *Builder) WithRateLimitStore(s RateLimitStore) *Builder {
	b.rateStore = s
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit destination. Audit.Enabled must also be true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and wires the engine.
//
// Token store resolution: WithTokenStore, then Redis, else an error.
// Rate-limit store resolution: WithRateLimitStore, then Redis, then a
// process-local memory store (logged as a warning).
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("stepauth")

	// -------- TOKEN STORE --------
	tokens := b.tokens
	if tokens == nil {
		if b.redis == nil {
			return nil, errors.New("token store required: use WithTokenStore or WithRedis")
		}
		tokens = stores.NewRedisTokenStore(b.redis, cfg.Redis.KeyPrefix)
	}

	// -------- RATE LIMITS --------
	rateStore := b.rateStore
	if rateStore == nil {
		if b.redis != nil {
			rateStore = rate.NewRedisStore(b.redis)
		} else {
			rateStore = rate.NewMemoryStore()
			if cfg.RateLimits.Enabled {
				logger.Warn("rate limits use process-local memory; counts are not shared between instances")
			}
		}
	}
	limiter := rate.New(rateStore, cfg.Redis.KeyPrefix+":rl")

	// -------- PASSWORDS --------
	hasher, err := password.NewHasher(password.Config{
		Algorithm:        password.Algorithm(cfg.Password.Algorithm),
		BcryptCost:       cfg.Password.BcryptCost,
		Argon2:           cfg.Password.Argon2,
		MaxPasswordBytes: cfg.Password.MaxLength,
	})
	if err != nil {
		return nil, err
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		accounts: b.accounts,
		tokens:   tokens,
		notifier: notifier,
		limiter:  limiter,
		guard:    limiters.NewGuard(limiter, cfg.RateLimits.policies()),
		hasher:   hasher,
		logger:   logger,
		metrics:  NewMetrics(cfg.Metrics),
		cookie: session.CookieConfig{
			Name:     cfg.Session.CookieName,
			Path:     cfg.Session.Path,
			Domain:   cfg.Session.Domain,
			Secure:   cfg.Session.Secure,
			SameSite: cfg.Session.SameSite,
		},
		now: time.Now,
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           func() time.Time { return engine.now() },
	})
	if err != nil {
		return nil, err
	}
	engine.jwt = jm

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
