package cart

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/glowkart/backend-cart/internal/events"
	"github.com/glowkart/backend-cart/internal/pricing"
)

type recordingStore struct {
	saves   []State
	deletes int
	loaded  State
	found   bool
	loadErr error
	saveErr error
}

func (s *recordingStore) Load(context.Context) (State, bool, error) {
	return s.loaded, s.found, s.loadErr
}

func (s *recordingStore) Save(_ context.Context, state State) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves = append(s.saves, state)
	return nil
}

func (s *recordingStore) Delete(context.Context) error {
	s.deletes++
	return nil
}

type captureNotifier struct {
	events []events.Event
}

func (n *captureNotifier) Notify(_ context.Context, ev events.Event) error {
	n.events = append(n.events, ev)
	return nil
}

func testRates() pricing.Rates {
	return pricing.Rates{
		TaxRateBPS:            875,
		StandardRate:          decimal.RequireFromString("10"),
		ExpressRate:           decimal.RequireFromString("9.99"),
		FreeShippingThreshold: decimal.RequireFromString("50"),
	}
}

func openTestLedger(t *testing.T, store Store) *Ledger {
	t.Helper()
	seq := 0
	return OpenLedger(context.Background(), LedgerConfig{
		CartID: "cart-test",
		Store:  store,
		Rates:  testRates(),
		NewLineID: func() string {
			seq++
			return fmt.Sprintf("line-%d", seq)
		},
	})
}

func snapshot(productID, price string) Snapshot {
	return Snapshot{ProductID: productID, Name: productID, Price: decimal.RequireFromString(price)}
}

func TestAddItemMergesOrderIndependentOptions(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	first, err := l.AddItem(ctx, snapshot("lipstick", "18.50"), Options{"shade": "ruby", "finish": "matte"}, 1)
	require.NoError(t, err)

	second, err := l.AddItem(ctx, snapshot("lipstick", "18.50"), Options{"finish": "matte", "shade": "ruby"}, 2)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 3, second.Quantity)
	require.Len(t, l.Items(), 1)
}

func TestAddItemNilAndEmptyOptionsShareIdentity(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	_, err := l.AddItem(ctx, snapshot("serum", "42"), nil, 1)
	require.NoError(t, err)
	line, err := l.AddItem(ctx, snapshot("serum", "42"), Options{}, 1)
	require.NoError(t, err)

	require.Equal(t, 2, line.Quantity)
	require.Len(t, l.Items(), 1)
	require.True(t, l.HasItem("serum", Options{}))
	require.True(t, l.HasItem("serum", nil))
}

func TestAddItemDistinctOptionsAppend(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	_, err := l.AddItem(ctx, snapshot("lipstick", "18.50"), Options{"shade": "ruby"}, 1)
	require.NoError(t, err)
	_, err = l.AddItem(ctx, snapshot("lipstick", "18.50"), Options{"shade": "coral"}, 1)
	require.NoError(t, err)

	items := l.Items()
	require.Len(t, items, 2)
	require.NotEqual(t, items[0].ID, items[1].ID)
	require.Equal(t, "ruby", items[0].Options["shade"])
	require.Equal(t, "coral", items[1].Options["shade"])
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	l := openTestLedger(t, nil)

	for _, qty := range []int{0, -1} {
		_, err := l.AddItem(context.Background(), snapshot("serum", "42"), nil, qty)
		require.ErrorIs(t, err, ErrInvalidQuantity)
	}
	require.Empty(t, l.Items())
}

func TestAddItemRejectsNegativePrice(t *testing.T) {
	l := openTestLedger(t, nil)

	_, err := l.AddItem(context.Background(), snapshot("serum", "-1"), nil, 1)
	require.ErrorIs(t, err, ErrInvalidPrice)
	require.Empty(t, l.Items())
}

func TestAddItemRejectsMissingProductID(t *testing.T) {
	l := openTestLedger(t, nil)

	_, err := l.AddItem(context.Background(), Snapshot{Price: decimal.Zero}, nil, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRemoveItemUnknownIsNoOp(t *testing.T) {
	store := &recordingStore{}
	l := openTestLedger(t, store)
	ctx := context.Background()

	_, err := l.AddItem(ctx, snapshot("serum", "42"), nil, 1)
	require.NoError(t, err)
	savesBefore := len(store.saves)

	l.RemoveItem(ctx, "no-such-line")
	require.Len(t, l.Items(), 1)
	require.Len(t, store.saves, savesBefore)
}

func TestRemoveItemDeletesLine(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	line, err := l.AddItem(ctx, snapshot("serum", "42"), nil, 1)
	require.NoError(t, err)
	_, err = l.AddItem(ctx, snapshot("mascara", "15"), nil, 1)
	require.NoError(t, err)

	l.RemoveItem(ctx, line.ID)
	items := l.Items()
	require.Len(t, items, 1)
	require.Equal(t, "mascara", items[0].ProductID)
}

func TestUpdateQuantityClampsToFloorOfOne(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	line, err := l.AddItem(ctx, snapshot("serum", "42"), nil, 3)
	require.NoError(t, err)

	l.UpdateQuantity(ctx, line.ID, 0)
	require.Equal(t, 1, l.Items()[0].Quantity)

	l.UpdateQuantity(ctx, line.ID, -7)
	require.Equal(t, 1, l.Items()[0].Quantity)

	l.UpdateQuantity(ctx, line.ID, 5)
	require.Equal(t, 5, l.Items()[0].Quantity)

	l.UpdateQuantity(ctx, "no-such-line", 9)
	require.Equal(t, 5, l.Items()[0].Quantity)
}

func TestUpdateOptionsWithoutCollision(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	line, err := l.AddItem(ctx, snapshot("lipstick", "18.50"), Options{"shade": "ruby"}, 2)
	require.NoError(t, err)

	l.UpdateOptions(ctx, line.ID, Options{"shade": "coral"})
	items := l.Items()
	require.Len(t, items, 1)
	require.Equal(t, "coral", items[0].Options["shade"])
	require.Equal(t, 2, items[0].Quantity)
}

func TestUpdateOptionsCollisionMergesIntoEarlierLine(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	first, err := l.AddItem(ctx, snapshot("lipstick", "18.50"), Options{"shade": "ruby"}, 2)
	require.NoError(t, err)
	second, err := l.AddItem(ctx, snapshot("lipstick", "18.50"), Options{"shade": "coral"}, 3)
	require.NoError(t, err)

	l.UpdateOptions(ctx, second.ID, Options{"shade": "ruby"})

	items := l.Items()
	require.Len(t, items, 1)
	require.Equal(t, first.ID, items[0].ID)
	require.Equal(t, 5, items[0].Quantity)
	require.Equal(t, "ruby", items[0].Options["shade"])
}

func TestUpdateOptionsCollisionEarlierLineEdited(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	first, err := l.AddItem(ctx, snapshot("lipstick", "18.50"), Options{"shade": "ruby"}, 2)
	require.NoError(t, err)
	_, err = l.AddItem(ctx, snapshot("lipstick", "18.50"), Options{"shade": "coral"}, 3)
	require.NoError(t, err)

	// Editing the earlier line into the later one still keeps the earlier slot.
	l.UpdateOptions(ctx, first.ID, Options{"shade": "coral"})

	items := l.Items()
	require.Len(t, items, 1)
	require.Equal(t, first.ID, items[0].ID)
	require.Equal(t, 5, items[0].Quantity)
	require.Equal(t, "coral", items[0].Options["shade"])
}

func TestSetShippingMethodRejectsUnknownWithoutChange(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	method, err := l.SetShippingMethod(ctx, "express")
	require.NoError(t, err)
	require.Equal(t, pricing.MethodExpress, method)

	_, err = l.SetShippingMethod(ctx, "overnight")
	require.ErrorIs(t, err, ErrInvalidShippingMethod)
	require.Equal(t, pricing.MethodExpress, l.ShippingMethod())
}

func TestSetShippingMethodNormalizesInput(t *testing.T) {
	l := openTestLedger(t, nil)

	method, err := l.SetShippingMethod(context.Background(), "  Express ")
	require.NoError(t, err)
	require.Equal(t, pricing.MethodExpress, method)
}

func TestClearResetsItemsAndShippingMethod(t *testing.T) {
	store := &recordingStore{}
	l := openTestLedger(t, store)
	ctx := context.Background()

	_, err := l.AddItem(ctx, snapshot("serum", "42"), nil, 2)
	require.NoError(t, err)
	_, err = l.SetShippingMethod(ctx, "express")
	require.NoError(t, err)

	l.Clear(ctx)

	require.Empty(t, l.Items())
	require.Zero(t, l.TotalItems())
	require.Equal(t, pricing.DefaultMethod, l.ShippingMethod())
	require.Equal(t, 1, store.deletes)
}

func TestItemsReturnsDefensiveCopy(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	_, err := l.AddItem(ctx, snapshot("lipstick", "18.50"), Options{"shade": "ruby"}, 1)
	require.NoError(t, err)

	items := l.Items()
	items[0].Quantity = 99
	items[0].Options["shade"] = "noir"

	fresh := l.Items()
	require.Equal(t, 1, fresh[0].Quantity)
	require.Equal(t, "ruby", fresh[0].Options["shade"])
}

func TestTotalItemsSumsQuantities(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	_, err := l.AddItem(ctx, snapshot("serum", "42"), nil, 2)
	require.NoError(t, err)
	_, err = l.AddItem(ctx, snapshot("mascara", "15"), nil, 3)
	require.NoError(t, err)

	require.Equal(t, 5, l.TotalItems())
	require.Len(t, l.Items(), 2)
}

func TestPersistRunsAfterEveryMutation(t *testing.T) {
	store := &recordingStore{}
	l := openTestLedger(t, store)
	ctx := context.Background()

	line, err := l.AddItem(ctx, snapshot("serum", "42"), nil, 1)
	require.NoError(t, err)
	l.UpdateQuantity(ctx, line.ID, 4)
	_, err = l.SetShippingMethod(ctx, "express")
	require.NoError(t, err)
	l.RemoveItem(ctx, line.ID)

	require.Len(t, store.saves, 4)
	last := store.saves[len(store.saves)-1]
	require.Empty(t, last.Items)
	require.Equal(t, "express", last.ShippingMethod)
}

func TestPersistFailureDoesNotRollBack(t *testing.T) {
	store := &recordingStore{saveErr: errors.New("redis down")}
	l := openTestLedger(t, store)

	line, err := l.AddItem(context.Background(), snapshot("serum", "42"), nil, 2)
	require.NoError(t, err)
	require.Equal(t, 2, line.Quantity)
	require.Len(t, l.Items(), 1)
}

func TestOpenLedgerRestoresPriorState(t *testing.T) {
	store := &recordingStore{
		found: true,
		loaded: State{
			ShippingMethod: "express",
			Items: []LineItem{{
				ID:        "line-a",
				ProductID: "serum",
				Name:      "serum",
				Price:     decimal.RequireFromString("42"),
				Quantity:  2,
			}},
		},
	}
	l := openTestLedger(t, store)

	require.Equal(t, pricing.MethodExpress, l.ShippingMethod())
	require.Equal(t, 2, l.TotalItems())
	require.True(t, l.HasItem("serum", nil))
}

func TestOpenLedgerLoadFailureStartsEmpty(t *testing.T) {
	store := &recordingStore{loadErr: errors.New("connection refused")}
	l := openTestLedger(t, store)

	require.Empty(t, l.Items())
	require.Equal(t, pricing.DefaultMethod, l.ShippingMethod())

	// The ledger stays usable after a failed restore.
	_, err := l.AddItem(context.Background(), snapshot("serum", "42"), nil, 1)
	require.NoError(t, err)
}

func TestLedgerEmitsEventsPerMutation(t *testing.T) {
	capture := &captureNotifier{}
	bus := &events.Bus{Notifiers: []events.Notifier{capture}}
	l := OpenLedger(context.Background(), LedgerConfig{
		CartID: "cart-events",
		Bus:    bus,
		Rates:  testRates(),
	})
	ctx := context.Background()

	line, err := l.AddItem(ctx, snapshot("serum", "42"), nil, 1)
	require.NoError(t, err)
	l.UpdateQuantity(ctx, line.ID, 2)
	l.UpdateOptions(ctx, line.ID, Options{"size": "50ml"})
	_, err = l.SetShippingMethod(ctx, "express")
	require.NoError(t, err)
	l.RemoveItem(ctx, line.ID)
	l.Clear(ctx)

	topics := make([]string, 0, len(capture.events))
	for _, ev := range capture.events {
		require.Equal(t, "cart-events", ev.CartID)
		topics = append(topics, ev.Topic)
	}
	require.Equal(t, []string{
		events.TopicItemAdded,
		events.TopicQuantityUpdated,
		events.TopicOptionsUpdated,
		events.TopicShippingMethodChanged,
		events.TopicItemRemoved,
		events.TopicCartCleared,
	}, topics)
}

type stallingNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func (n *stallingNotifier) Notify(context.Context, events.Event) error {
	close(n.entered)
	<-n.release
	return nil
}

func TestLedgerSlowNotifierDoesNotBlockReaders(t *testing.T) {
	stall := &stallingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	bus := &events.Bus{Notifiers: []events.Notifier{stall}}
	l := OpenLedger(context.Background(), LedgerConfig{
		CartID: "cart-slow-sink",
		Bus:    bus,
		Rates:  testRates(),
	})

	added := make(chan struct{})
	go func() {
		defer close(added)
		_, err := l.AddItem(context.Background(), snapshot("serum", "42"), nil, 1)
		require.NoError(t, err)
	}()
	<-stall.entered

	// Delivery is still in flight; reads must not queue behind it.
	read := make(chan int, 1)
	go func() { read <- len(l.Items()) }()
	select {
	case n := <-read:
		require.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("read blocked behind event delivery")
	}

	close(stall.release)
	<-added
}

func TestOpenLedgerUnknownStoredMethodFallsBackToDefault(t *testing.T) {
	store := &recordingStore{
		found: true,
		loaded: State{
			ShippingMethod: "drone",
			Items: []LineItem{{
				ID:        "line-a",
				ProductID: "serum",
				Name:      "serum",
				Price:     decimal.RequireFromString("42"),
				Quantity:  1,
			}},
		},
	}
	l := openTestLedger(t, store)

	require.Equal(t, pricing.DefaultMethod, l.ShippingMethod())
	require.Equal(t, 1, l.TotalItems())
}

func TestLedgerSummaryReflectsCurrentState(t *testing.T) {
	l := openTestLedger(t, nil)
	ctx := context.Background()

	_, err := l.AddItem(ctx, snapshot("serum", "25"), nil, 2)
	require.NoError(t, err)

	summary := l.Summary()
	require.Equal(t, "50", summary.Subtotal.String())
	require.True(t, summary.Shipping.IsZero())
	require.Equal(t, "10", summary.ShippingDiscount.String())

	_, err = l.SetShippingMethod(ctx, "express")
	require.NoError(t, err)
	summary = l.Summary()
	require.Equal(t, "9.99", summary.Shipping.String())
	require.True(t, summary.ShippingDiscount.IsZero())
}
