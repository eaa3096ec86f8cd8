package cart

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/glowkart/backend-cart/internal/events"
	"github.com/glowkart/backend-cart/internal/lock"
	"github.com/glowkart/backend-cart/internal/pricing"
)

const (
	keyPrefix  = "cart:"
	lockPrefix = "cart:mutex:"
)

// Manager opens per-session ledgers backed by Redis. Each Open restores the
// cart keyed by its id, so a ledger's lifecycle matches one request (or one
// embedding caller) rather than living as a process-global singleton.
type Manager struct {
	Redis   *redis.Client
	TTL     time.Duration
	Rates   pricing.Rates
	Bus     *events.Bus
	Logger  zerolog.Logger
	Lock    *lock.Locker
	LockTTL time.Duration
}

// NewCartID mints a session cart identifier.
func (m *Manager) NewCartID() string {
	return uuid.NewString()
}

// Open restores (or starts empty) the ledger for the given cart id.
func (m *Manager) Open(ctx context.Context, cartID string) *Ledger {
	return OpenLedger(ctx, LedgerConfig{
		CartID: cartID,
		Store:  m.storeFor(cartID),
		Bus:    m.Bus,
		Rates:  m.Rates,
		Logger: m.Logger,
	})
}

// Mutate opens the ledger under a per-cart distributed lock and runs fn, so
// two instances never interleave a load-modify-save cycle on the same cart.
// Serialization is best-effort: a lock outage falls back to an unlocked run
// rather than blocking the shopper.
func (m *Manager) Mutate(ctx context.Context, cartID string, fn func(*Ledger) error) error {
	if m.Lock == nil || strings.TrimSpace(cartID) == "" {
		return fn(m.Open(ctx, cartID))
	}
	ran := false
	err := m.Lock.WithLock(ctx, lockPrefix+cartID, m.lockTTL(), func(ctx context.Context) error {
		ran = true
		return fn(m.Open(ctx, cartID))
	})
	if err != nil && !ran {
		m.Logger.Warn().Err(err).Str("cart_id", cartID).Msg("cart lock unavailable, mutating unlocked")
		return fn(m.Open(ctx, cartID))
	}
	return err
}

func (m *Manager) lockTTL() time.Duration {
	if m.LockTTL <= 0 {
		return 5 * time.Second
	}
	return m.LockTTL
}

func (m *Manager) storeFor(cartID string) Store {
	if m.Redis == nil || strings.TrimSpace(cartID) == "" {
		return NopStore{}
	}
	return RedisStore{Client: m.Redis, Key: keyPrefix + cartID, TTL: m.ttl()}
}

func (m *Manager) ttl() time.Duration {
	if m.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return m.TTL
}
