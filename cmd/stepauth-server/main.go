// Command stepauth-server runs the stepAuth engine behind a chi router.
//
// Accounts live in Postgres when DATABASE_URL is set and in memory
// otherwise. Tokens, codes and rate windows live in Redis when REDIS_ADDR
// is set, then Postgres, then memory.
//
// Run:
//
//	STEPAUTH_JWT_SECRET=$(openssl rand -hex 32) \
//	STEPAUTH_COOKIE_SECURE=false STEPAUTH_DEV_OUTBOX=true \
//	STEPAUTH_SEED_ADMIN_EMAIL=admin@example.com \
//	STEPAUTH_SEED_ADMIN_PASSWORD=correct-horse \
//	go run ./cmd/stepauth-server
//
// Then:
//
//	curl -i -c jar.txt -X POST localhost:8080/api/login \
//	  -H 'Content-Type: application/json' \
//	  -d '{"email":"admin@example.com","password":"correct-horse"}'
//	curl -s localhost:8080/dev/outbox
//	curl -i -b jar.txt -c jar.txt -X POST localhost:8080/api/step-up \
//	  -H 'Content-Type: application/json' -d '{"code":"<CODE>"}'
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/MrEthical07/stepAuth/password"
	"github.com/MrEthical07/stepAuth/store/memory"
	"github.com/MrEthical07/stepAuth/store/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(format string) (*zap.Logger, error) {
	if format == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineCfg := stepAuth.DefaultConfig()
	engineCfg.JWT.PrivateKey = []byte(cfg.JWTSecret)
	engineCfg.Session.Secure = cfg.CookieSecure
	engineCfg.Audit.Enabled = true

	builder := stepAuth.New().
		WithConfig(engineCfg).
		WithLogger(logger).
		WithAuditSink(stepAuth.NewZapSink(logger))

	var accounts stepAuth.AccountStore = memory.NewStore()
	var tokens stepAuth.TokenStore
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		pg := postgres.New(db)
		accounts, tokens = pg, pg
		logger.Info("using postgres account store")
	} else {
		logger.Warn("DATABASE_URL not set; accounts are kept in memory")
	}
	builder.WithAccountStore(accounts)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		builder.WithRedis(rdb)
		logger.Info("using redis token and rate-limit store", zap.String("addr", cfg.RedisAddr))
	} else if tokens != nil {
		builder.WithTokenStore(tokens)
	} else {
		builder.WithTokenStore(stepAuth.NewMemoryTokenStore())
	}

	var box *outbox
	if cfg.DevOutbox {
		box = newOutbox(logger, 100)
		builder.WithNotifier(box)
		logger.Warn("dev outbox enabled; verification secrets are readable at /dev/outbox")
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if cfg.SeedAdminEmail != "" {
		if err := seedAdmin(ctx, accounts, engineCfg, cfg.SeedAdminEmail, cfg.SeedAdminPass); err != nil {
			return err
		}
		logger.Info("admin account ready", zap.String("email", cfg.SeedAdminEmail))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           (&server{engine: engine, outbox: box, logger: logger, trustProxy: cfg.TrustProxy}).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedAdmin creates a verified admin account unless the email is taken.
func seedAdmin(ctx context.Context, accounts stepAuth.AccountStore, cfg stepAuth.Config, email, pw string) error {
	if len(pw) < cfg.Password.MinLength {
		return stepAuth.ErrPasswordPolicy
	}
	hasher, err := password.NewHasher(password.Config{
		Algorithm:  password.Algorithm(cfg.Password.Algorithm),
		BcryptCost: cfg.Password.BcryptCost,
		Argon2:     cfg.Password.Argon2,
	})
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(pw)
	if err != nil {
		return err
	}

	acct, err := accounts.CreateAccount(ctx, stepAuth.NewAccount{
		Email:        email,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         stepAuth.RoleAdmin,
	})
	if errors.Is(err, stepAuth.ErrAccountExists) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = accounts.MarkEmailVerified(ctx, acct.ID, time.Now())
	return err
}
