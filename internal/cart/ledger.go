package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/glowkart/backend-cart/internal/events"
	"github.com/glowkart/backend-cart/internal/obs"
	"github.com/glowkart/backend-cart/internal/pricing"
)

// Ledger is the aggregate root for one session cart: an ordered collection
// of line items plus the chosen shipping method. It is the sole mutator of
// line state; every mutation runs atomically with respect to the others and
// dispatches its persistence save before the next command is admitted.
type Ledger struct {
	id     string
	store  Store
	bus    *events.Bus
	rates  pricing.Rates
	logger zerolog.Logger
	newID  func() string

	mu     sync.Mutex
	items  []LineItem
	method pricing.Method
}

// LedgerConfig groups Ledger dependencies.
type LedgerConfig struct {
	CartID string
	Store  Store
	Bus    *events.Bus
	Rates  pricing.Rates
	Logger zerolog.Logger
	// NewLineID overrides line id generation; defaults to uuid.NewString.
	NewLineID func() string
}

// OpenLedger constructs a ledger and restores prior state from the store.
// A missing, corrupt, or invariant-violating payload yields an empty ledger;
// restoration is never partial and never fails construction.
func OpenLedger(ctx context.Context, cfg LedgerConfig) *Ledger {
	l := &Ledger{
		id:     cfg.CartID,
		store:  cfg.Store,
		bus:    cfg.Bus,
		rates:  cfg.Rates,
		logger: cfg.Logger,
		newID:  cfg.NewLineID,
		method: pricing.DefaultMethod,
	}
	if l.store == nil {
		l.store = NopStore{}
	}
	if l.newID == nil {
		l.newID = uuid.NewString
	}

	state, ok, err := l.store.Load(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Str("cart_id", l.id).Msg("cart restore failed, starting empty")
		return l
	}
	if !ok {
		return l
	}
	if method, ok := pricing.ParseMethod(state.ShippingMethod); ok {
		l.method = method
	} else {
		l.logger.Warn().Str("cart_id", l.id).Str("method", state.ShippingMethod).
			Msg("stored shipping method unrecognized, using default")
	}
	l.items = cloneItems(state.Items)
	return l
}

// ID returns the cart identifier this ledger was opened for.
func (l *Ledger) ID() string { return l.id }

// AddItem merges the request into an equivalent existing line, or appends a
// new line at the end of the collection. The engine deliberately enforces no
// upper quantity bound; any cap belongs to the calling UI.
//
// Event delivery runs after the mutex is released so a slow sink never
// blocks concurrent readers or the next mutation. The same holds for every
// other mutation below.
func (l *Ledger) AddItem(ctx context.Context, snap Snapshot, opts Options, qty int) (LineItem, error) {
	if qty < 1 {
		return LineItem{}, fmt.Errorf("add quantity %d: %w", qty, ErrInvalidQuantity)
	}
	if err := snap.validate(); err != nil {
		return LineItem{}, err
	}

	l.mu.Lock()
	opts = opts.clone()
	var out LineItem
	merged := false
	for i := range l.items {
		if sameLine(l.items[i], snap.ProductID, opts) {
			l.items[i].Quantity += qty
			out = l.items[i].clone()
			merged = true
			break
		}
	}
	if !merged {
		line := LineItem{
			ID:            l.newID(),
			ProductID:     snap.ProductID,
			Name:          snap.Name,
			Brand:         snap.Brand,
			Image:         snap.Image,
			Price:         snap.Price,
			OriginalPrice: snap.OriginalPrice,
			Quantity:      qty,
			Options:       opts,
		}
		l.items = append(l.items, line)
		out = line.clone()
	}
	l.persist(ctx)
	l.mu.Unlock()

	if merged {
		obs.IncCartAdd("merged")
	} else {
		obs.IncCartAdd("created")
	}
	l.emit(ctx, events.TopicItemAdded, out)
	return out, nil
}

// RemoveItem deletes the named line. Unknown ids are silent no-ops so stale
// UI references never surface as errors.
func (l *Ledger) RemoveItem(ctx context.Context, lineID string) {
	l.mu.Lock()
	idx := l.indexOf(lineID)
	if idx < 0 {
		l.mu.Unlock()
		return
	}
	removed := l.items[idx].clone()
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	l.persist(ctx)
	l.mu.Unlock()

	l.emit(ctx, events.TopicItemRemoved, removed)
}

// UpdateQuantity sets the line quantity, clamped to a minimum of one.
// Removal is the only way a line reaches zero. Unknown ids are no-ops.
func (l *Ledger) UpdateQuantity(ctx context.Context, lineID string, qty int) {
	l.mu.Lock()
	idx := l.indexOf(lineID)
	if idx < 0 {
		l.mu.Unlock()
		return
	}
	if qty < 1 {
		qty = 1
	}
	l.items[idx].Quantity = qty
	line := l.items[idx].clone()
	l.persist(ctx)
	l.mu.Unlock()

	l.emit(ctx, events.TopicQuantityUpdated, line)
}

// UpdateOptions replaces the options map on the named line. When the new
// options collide with another line's identity, the two lines merge: the
// earlier-inserted line survives with the summed quantity. Unknown ids are
// no-ops.
func (l *Ledger) UpdateOptions(ctx context.Context, lineID string, opts Options) {
	l.mu.Lock()
	idx := l.indexOf(lineID)
	if idx < 0 {
		l.mu.Unlock()
		return
	}
	opts = opts.clone()

	other := -1
	for i := range l.items {
		if i != idx && sameLine(l.items[i], l.items[idx].ProductID, opts) {
			other = i
			break
		}
	}

	var line LineItem
	collided := other >= 0
	if !collided {
		l.items[idx].Options = opts
		line = l.items[idx].clone()
	} else {
		survivor, absorbed := other, idx
		if idx < other {
			survivor, absorbed = idx, other
		}
		l.items[survivor].Quantity += l.items[absorbed].Quantity
		l.items[survivor].Options = opts
		l.items = append(l.items[:absorbed], l.items[absorbed+1:]...)
		line = l.items[survivor].clone()
	}
	l.persist(ctx)
	l.mu.Unlock()

	if collided {
		obs.IncCartAdd("merged")
	}
	l.emit(ctx, events.TopicOptionsUpdated, line)
}

// SetShippingMethod replaces the current method. Values outside the
// recognized set are rejected without any state change.
func (l *Ledger) SetShippingMethod(ctx context.Context, raw string) (pricing.Method, error) {
	method, ok := pricing.ParseMethod(raw)
	if !ok {
		return "", fmt.Errorf("shipping method %q: %w", raw, ErrInvalidShippingMethod)
	}

	l.mu.Lock()
	l.method = method
	l.persist(ctx)
	l.mu.Unlock()

	l.emit(ctx, events.TopicShippingMethodChanged, map[string]string{"method": string(method)})
	return method, nil
}

// Clear empties the ledger and resets the shipping method to the default.
func (l *Ledger) Clear(ctx context.Context) {
	l.mu.Lock()
	l.items = nil
	l.method = pricing.DefaultMethod
	err := l.store.Delete(ctx)
	l.mu.Unlock()

	if err != nil {
		obs.IncCartPersistFailure()
		l.logger.Warn().Err(err).Str("cart_id", l.id).Msg("cart clear persist failed")
	}
	l.emit(ctx, events.TopicCartCleared, nil)
}

// HasItem reports whether a line with the given identity currently exists.
func (l *Ledger) HasItem(productID string, opts Options) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.items {
		if sameLine(l.items[i], productID, opts) {
			return true
		}
	}
	return false
}

// Items returns an ordered snapshot of the lines. Mutating the returned
// slice or its maps does not affect ledger state.
func (l *Ledger) Items() []LineItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneItems(l.items)
}

// TotalItems is the sum of all line quantities, not the number of lines.
func (l *Ledger) TotalItems() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for i := range l.items {
		total += l.items[i].Quantity
	}
	return total
}

// ShippingMethod returns the currently selected method.
func (l *Ledger) ShippingMethod() pricing.Method {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.method
}

// Summary derives the order summary from current state. It is recomputed on
// every call and never cached across mutations.
func (l *Ledger) Summary() pricing.Summary {
	l.mu.Lock()
	items := make([]pricing.Item, 0, len(l.items))
	for i := range l.items {
		items = append(items, pricing.Item{
			Qty:           l.items[i].Quantity,
			UnitPrice:     l.items[i].Price,
			OriginalPrice: l.items[i].OriginalPrice,
		})
	}
	method := l.method
	l.mu.Unlock()

	return pricing.Compute(items, method, l.rates)
}

func (l *Ledger) indexOf(lineID string) int {
	for i := range l.items {
		if l.items[i].ID == lineID {
			return i
		}
	}
	return -1
}

// persist saves the current state. Failure is logged and counted but never
// rolls back the in-memory mutation: the running ledger is the source of
// truth for the session, persistence is best-effort durability.
func (l *Ledger) persist(ctx context.Context) {
	state := State{Items: cloneItems(l.items), ShippingMethod: string(l.method)}
	if err := l.store.Save(ctx, state); err != nil {
		obs.IncCartPersistFailure()
		l.logger.Warn().Err(err).Str("cart_id", l.id).Msg("cart persist failed")
	}
}

func (l *Ledger) emit(ctx context.Context, topic string, payload any) {
	if l.bus == nil {
		return
	}
	l.bus.Emit(ctx, topic, l.id, payload)
}

func cloneItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]LineItem, len(items))
	for i := range items {
		out[i] = items[i].clone()
	}
	return out
}
