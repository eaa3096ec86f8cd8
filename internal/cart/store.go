package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/glowkart/backend-cart/internal/pricing"
)

// State is the persisted shape of a ledger.
type State struct {
	Items          []LineItem `json:"items"`
	ShippingMethod string     `json:"shippingMethod"`
}

// Store abstracts ledger persistence. Load is consulted once when a ledger
// is opened; Save runs after every successful mutation. Both are best-effort
// from the ledger's point of view: a failing Load yields an empty ledger and
// a failing Save never rolls the in-memory mutation back.
type Store interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, state State) error
	Delete(ctx context.Context) error
}

// ErrCorruptState marks a persisted payload that could not be decoded or
// violates ledger invariants. Callers treat it as "no prior state".
var ErrCorruptState = errors.New("persisted cart state is corrupt")

// RedisStore keeps one JSON document per cart key with a session TTL.
type RedisStore struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

func (s RedisStore) Load(ctx context.Context) (State, bool, error) {
	if s.Client == nil || s.Key == "" {
		return State{}, false, nil
	}
	data, err := s.Client.Get(ctx, s.Key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("load cart state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, false, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if err := validateState(state); err != nil {
		return State{}, false, err
	}
	return state, true, nil
}

func (s RedisStore) Save(ctx context.Context, state State) error {
	if s.Client == nil || s.Key == "" {
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode cart state: %w", err)
	}
	if err := s.Client.Set(ctx, s.Key, data, s.TTL).Err(); err != nil {
		return fmt.Errorf("save cart state: %w", err)
	}
	return nil
}

func (s RedisStore) Delete(ctx context.Context) error {
	if s.Client == nil || s.Key == "" {
		return nil
	}
	if err := s.Client.Del(ctx, s.Key).Err(); err != nil {
		return fmt.Errorf("delete cart state: %w", err)
	}
	return nil
}

// validateState rejects payloads that would restore a ledger into an
// invariant-violating shape. Restoration is all-or-nothing.
func validateState(state State) error {
	if _, ok := pricing.ParseMethod(state.ShippingMethod); !ok {
		return fmt.Errorf("%w: shipping method %q", ErrCorruptState, state.ShippingMethod)
	}
	seen := make(map[string]struct{}, len(state.Items))
	for i, li := range state.Items {
		if !li.valid() {
			return fmt.Errorf("%w: line %q", ErrCorruptState, li.ID)
		}
		if _, dup := seen[li.ID]; dup {
			return fmt.Errorf("%w: duplicate line id %q", ErrCorruptState, li.ID)
		}
		seen[li.ID] = struct{}{}
		// A ledger holds exactly one line per (product, options) identity;
		// two lines sharing one would merge on the next add anyway.
		for _, prev := range state.Items[:i] {
			if sameLine(prev, li.ProductID, li.Options) {
				return fmt.Errorf("%w: lines %q and %q share one identity", ErrCorruptState, prev.ID, li.ID)
			}
		}
	}
	return nil
}

// NopStore is a Store that keeps nothing. Useful for tests and for callers
// embedding the ledger without durability.
type NopStore struct{}

func (NopStore) Load(context.Context) (State, bool, error) { return State{}, false, nil }
func (NopStore) Save(context.Context, State) error         { return nil }
func (NopStore) Delete(context.Context) error              { return nil }
