package main

import (
	"context"
	"time"

	"github.com/ESHWARGEEK/CodeLearn/internal/config"
	"github.com/ESHWARGEEK/CodeLearn/oauth"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/provider/cognito"
	"github.com/ESHWARGEEK/CodeLearn/provider/local"
	"github.com/ESHWARGEEK/CodeLearn/ratelimit"
	"github.com/ESHWARGEEK/CodeLearn/server"
	"github.com/ESHWARGEEK/CodeLearn/token"
	"github.com/rs/zerolog/log"
)

const (
	localKeyID    = "local-dev"
	localKeyBits  = 2048
	localClientID = "local-client"
)

// buildDeps picks the identity provider and rate limiter backends from the
// configuration. The returned func releases whatever was opened.
func buildDeps(ctx context.Context, cfg config.Config) (server.Deps, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var (
		idp      provider.IdentityProvider
		verifier token.Verifier
	)
	if cfg.HasUserPool() {
		pool, err := cognito.NewFromConfig(ctx, cfg)
		if err != nil {
			return server.Deps{}, closeAll, err
		}
		idp = pool
		verifier = token.NewRemoteVerifier(ctx, cfg)
		log.Info().Str("pool", cfg.GetUserPoolID()).Str("region", cfg.GetRegion()).Msg("Using Cognito user pool")
	} else {
		keyPair, err := token.GenerateRSAKeyPair(localKeyID, localKeyBits)
		if err != nil {
			return server.Deps{}, closeAll, err
		}
		clientID := cfg.GetClientID()
		if clientID == "" {
			clientID = localClientID
		}
		dev := local.New(cfg.GetAppURL()+"/local", clientID, token.NewSigner(keyPair))
		idp = dev
		verifier = dev.Verifier()
		log.Warn().Msg("No user pool configured; using the in-memory local provider")
	}

	limiter, closeLimiter, err := buildLimiter(ctx, cfg)
	if err != nil {
		return server.Deps{}, closeAll, err
	}
	closers = append(closers, closeLimiter)

	downstream, err := server.NewDownstream(cfg.GetFrontendURL())
	if err != nil {
		return server.Deps{}, closeAll, err
	}

	return server.Deps{
		Provider:   idp,
		Verifier:   verifier,
		Exchanger:  oauth.NewExchanger(cfg, cfg.GetAppURL(), idp),
		Limiter:    limiter,
		Downstream: downstream,
	}, closeAll, nil
}

func buildLimiter(ctx context.Context, cfg config.Config) (ratelimit.Limiter, func(), error) {
	window := cfg.GetResendWindow()

	switch {
	case cfg.GetRedisAddr() != "":
		client, err := ratelimit.NewRedisClient(ctx, cfg.GetRedisAddr(), cfg.GetRedisPassword())
		if err != nil {
			return nil, func() {}, err
		}
		log.Info().Str("addr", cfg.GetRedisAddr()).Msg("Rate limiting with Redis")
		return ratelimit.NewRedisLimiter(client, window), func() { _ = client.Close() }, nil

	case cfg.GetRateLimitTable() != "":
		limiter, err := ratelimit.NewDynamoLimiterFromConfig(ctx, cfg.GetRegion(), cfg.GetRateLimitTable(), window)
		if err != nil {
			return nil, func() {}, err
		}
		log.Info().Str("table", cfg.GetRateLimitTable()).Msg("Rate limiting with DynamoDB")
		return limiter, func() {}, nil

	default:
		eviction := cfg.GetRateLimitEviction()
		limiter := ratelimit.NewMemoryLimiter(window, eviction)
		ctx, cancel := context.WithCancel(ctx)
		go sweep(ctx, limiter, eviction)
		log.Warn().Msg("Rate limiting in memory; limits are per instance")
		return limiter, cancel, nil
	}
}

func sweep(ctx context.Context, limiter *ratelimit.MemoryLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup()
		}
	}
}
