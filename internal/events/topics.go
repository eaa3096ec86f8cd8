package events

// Topic constants for cart acknowledgments.
const (
	TopicItemAdded             = "cart.item_added"
	TopicItemRemoved           = "cart.item_removed"
	TopicQuantityUpdated       = "cart.quantity_updated"
	TopicOptionsUpdated        = "cart.options_updated"
	TopicShippingMethodChanged = "cart.shipping_method_changed"
	TopicCartCleared           = "cart.cleared"
)

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicItemAdded,
		TopicItemRemoved,
		TopicQuantityUpdated,
		TopicOptionsUpdated,
		TopicShippingMethodChanged,
		TopicCartCleared,
	}
}
