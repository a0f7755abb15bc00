package main

import (
	"context"
	"fmt"
	"io"

	"sjsage522/couponwatcher/config"
	"sjsage522/couponwatcher/helpers"
	"sjsage522/couponwatcher/internal"
	"sjsage522/couponwatcher/internal/coupon"
	"sjsage522/couponwatcher/internal/crawler"
	"sjsage522/couponwatcher/internal/store"
	"sjsage522/couponwatcher/internal/workflow"
	"sjsage522/couponwatcher/logger"
	werrors "sjsage522/couponwatcher/pkg/errors"
	"sjsage522/couponwatcher/services/cache"
	"sjsage522/couponwatcher/services/publisher"
)

// initializeServices initializes all required services. Console output goes to out.
func initializeServices(ctx context.Context, cfg *config.Config, command string, out io.Writer) (*internal.Dependencies, error) {
	log := logger.Default
	deps := &internal.Dependencies{}

	rule, err := loadRule(cfg)
	if err != nil {
		return nil, err
	}
	deps.Rule = rule

	deps.Cache = cache.New(cfg.MemcacheAddr)
	if cfg.MemcacheAddr != "" {
		logger.Info("Using Memcache at %s for the rate limit gate", cfg.MemcacheAddr)
	}

	deps.Sessions, err = crawler.NewSessionFactory(cfg.SessionMode, crawler.SessionOptions{
		Headless:          cfg.BrowserHeadless,
		ExecutablePath:    cfg.BrowserExecutable,
		Proxy:             cfg.BrowserProxy,
		Locale:            cfg.BrowserLocale,
		ViewportWidth:     cfg.ViewportWidth,
		ViewportHeight:    cfg.ViewportHeight,
		NavigationTimeout: cfg.RenderTimeout,
	})
	if err != nil {
		return nil, werrors.NewConfiguration("invalid session mode", err)
	}

	deps.Store = store.NewFileStore(cfg.RecordFile)

	switch cfg.Emitter {
	case config.EmitterRedis:
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			redisPublisher.Close()
			return nil, werrors.NewNetwork(fmt.Sprintf("failed to connect to redis at %s", cfg.RedisAddr), err)
		}
		deps.Publisher = redisPublisher
		deps.Emitter = publisher.NewChatEmitter(redisPublisher, command)

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	default:
		deps.Emitter = publisher.NewConsoleEmitter(out)
	}

	log.Info().
		Str("rule", rule.String()).
		Str("session_mode", cfg.SessionMode).
		Str("emitter", cfg.Emitter).
		Str("record_file", cfg.RecordFile).
		Msg("Services initialized")

	return deps, nil
}

// loadRule returns the rule from RULES_FILE, or the embedded default
func loadRule(cfg *config.Config) (*crawler.Rule, error) {
	if cfg.RulesFile == "" {
		rule, err := crawler.DefaultRule()
		if err != nil {
			return nil, werrors.NewConfiguration("invalid embedded rule", err)
		}
		return rule, nil
	}
	rule, err := crawler.LoadRule(cfg.RulesFile)
	if err != nil {
		return nil, werrors.NewConfiguration(fmt.Sprintf("invalid rule file %s", cfg.RulesFile), err)
	}
	return rule, nil
}

// newWorkflow assembles the update workflow over deps
func newWorkflow(cfg *config.Config, deps *internal.Dependencies, opts ...workflow.Option) *workflow.Workflow {
	fetcher := crawler.NewFetcher(deps.Rule, deps.Cache, cfg.RateLimitBlock, cfg.RenderTimeout)
	opts = append([]workflow.Option{workflow.WithDiagnostics(helpers.NewLogger(cfg.ErrorLogFile))}, opts...)
	return workflow.New(deps.Sessions, fetcher, deps.Store, coupon.ExtractCouponCode, opts...)
}
