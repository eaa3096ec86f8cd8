package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client, _ := newTestRedis(t)
	store := RedisStore{Client: client, Key: "cart:abc", TTL: time.Hour}
	ctx := context.Background()

	orig := decimal.RequireFromString("56")
	state := State{
		ShippingMethod: "express",
		Items: []LineItem{{
			ID:            "line-1",
			ProductID:     "serum",
			Name:          "Hydra Glow Serum",
			Price:         decimal.RequireFromString("42"),
			OriginalPrice: &orig,
			Quantity:      2,
			Options:       Options{"size": "50ml"},
		}},
	}
	require.NoError(t, store.Save(ctx, state))

	loaded, found, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "express", loaded.ShippingMethod)
	require.Len(t, loaded.Items, 1)
	require.Equal(t, "line-1", loaded.Items[0].ID)
	require.True(t, loaded.Items[0].Price.Equal(decimal.RequireFromString("42")))
	require.NotNil(t, loaded.Items[0].OriginalPrice)
	require.True(t, loaded.Items[0].OriginalPrice.Equal(orig))
	require.Equal(t, Options{"size": "50ml"}, loaded.Items[0].Options)
}

func TestRedisStoreMissingKey(t *testing.T) {
	client, _ := newTestRedis(t)
	store := RedisStore{Client: client, Key: "cart:missing", TTL: time.Hour}

	_, found, err := store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStoreCorruptPayload(t *testing.T) {
	client, mr := newTestRedis(t)
	store := RedisStore{Client: client, Key: "cart:bad", TTL: time.Hour}

	require.NoError(t, mr.Set("cart:bad", "{not json"))

	_, found, err := store.Load(context.Background())
	require.ErrorIs(t, err, ErrCorruptState)
	require.False(t, found)
}

func TestRedisStoreRejectsInvariantViolations(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		payload string
	}{
		{name: "unknown shipping method", payload: `{"items":[],"shippingMethod":"drone"}`},
		{name: "zero quantity line", payload: `{"items":[{"id":"l1","productId":"p1","price":"10","quantity":0}],"shippingMethod":"standard"}`},
		{name: "blank line id", payload: `{"items":[{"id":"","productId":"p1","price":"10","quantity":1}],"shippingMethod":"standard"}`},
		{name: "duplicate line ids", payload: `{"items":[{"id":"l1","productId":"p1","price":"10","quantity":1},{"id":"l1","productId":"p2","price":"5","quantity":1}],"shippingMethod":"standard"}`},
		{name: "two lines with one identity", payload: `{"items":[{"id":"l1","productId":"p1","price":"10","quantity":1,"options":{"shade":"rose"}},{"id":"l2","productId":"p1","price":"10","quantity":2,"options":{"shade":"rose"}}],"shippingMethod":"standard"}`},
		{name: "two optionless lines for one product", payload: `{"items":[{"id":"l1","productId":"p1","price":"10","quantity":1},{"id":"l2","productId":"p1","price":"10","quantity":2}],"shippingMethod":"standard"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, mr.Set("cart:invalid", tc.payload))
			store := RedisStore{Client: client, Key: "cart:invalid", TTL: time.Hour}
			_, found, err := store.Load(ctx)
			require.ErrorIs(t, err, ErrCorruptState)
			require.False(t, found)
		})
	}
}

func TestRedisStoreSetsTTL(t *testing.T) {
	client, mr := newTestRedis(t)
	store := RedisStore{Client: client, Key: "cart:ttl", TTL: time.Hour}

	require.NoError(t, store.Save(context.Background(), State{ShippingMethod: "standard"}))
	require.Equal(t, time.Hour, mr.TTL("cart:ttl"))
}

func TestRedisStoreDelete(t *testing.T) {
	client, mr := newTestRedis(t)
	store := RedisStore{Client: client, Key: "cart:gone", TTL: time.Hour}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, State{ShippingMethod: "standard"}))
	require.NoError(t, store.Delete(ctx))
	require.False(t, mr.Exists("cart:gone"))
}

func TestOpenLedgerWithCorruptRedisPayloadStartsEmpty(t *testing.T) {
	client, mr := newTestRedis(t)
	require.NoError(t, mr.Set("cart:corrupt", "][]["))

	l := OpenLedger(context.Background(), LedgerConfig{
		CartID: "corrupt",
		Store:  RedisStore{Client: client, Key: "cart:corrupt", TTL: time.Hour},
		Rates:  testRates(),
	})
	require.Empty(t, l.Items())

	// A fresh mutation overwrites the corrupt payload.
	_, err := l.AddItem(context.Background(), snapshot("serum", "42"), nil, 1)
	require.NoError(t, err)
	loaded, found, err := RedisStore{Client: client, Key: "cart:corrupt"}.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, loaded.Items, 1)
}
