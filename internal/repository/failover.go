package repository

import (
	"context"
	"sync/atomic"
	"time"

	"spacebook/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const primaryRetryInterval = time.Minute

// FailoverTokenStore uses primary until it errors, then serves from
// fallback and probes primary again once a minute.
type FailoverTokenStore struct {
	primary   domain.TokenStore
	fallback  domain.TokenStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverTokenStore(primary, fallback domain.TokenStore, logger *zerolog.Logger) *FailoverTokenStore {
	return &FailoverTokenStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverTokenStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	return r.now().Sub(last) > primaryRetryInterval
}

func (r *FailoverTokenStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary token store failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverTokenStore) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary token store recovered")
	}
}

func (r *FailoverTokenStore) GetToken(ctx context.Context, key string) (*oauth2.Token, error) {
	if r.usePrimary() {
		token, err := r.primary.GetToken(ctx, key)
		if err == nil {
			r.markUp()
			return token, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetToken(ctx, key)
}

func (r *FailoverTokenStore) SetToken(ctx context.Context, key string, token *oauth2.Token) error {
	if r.usePrimary() {
		err := r.primary.SetToken(ctx, key, token)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetToken(ctx, key, token)
}

func (r *FailoverTokenStore) DeleteToken(ctx context.Context, key string) error {
	if r.usePrimary() {
		err := r.primary.DeleteToken(ctx, key)
		if err == nil {
			r.markUp()
			return r.fallback.DeleteToken(ctx, key)
		}
		r.markDown(err)
	}
	return r.fallback.DeleteToken(ctx, key)
}
