package events

// Topic constants for quote domain events.
const (
	TopicSessionStarted  = "quote.session_started"
	TopicItemAdded       = "quote.item_added"
	TopicItemRemoved     = "quote.item_removed"
	TopicTierChanged     = "quote.tier_changed"
	TopicAddOnToggled    = "quote.addon_toggled"
	TopicQuantityChanged = "quote.quantity_changed"
	TopicCustomerUpdated = "quote.customer_updated"
	TopicCleared         = "quote.cleared"
	TopicSessionEnded    = "quote.session_ended"
)

// DefaultTopics returns every topic the quote service emits.
func DefaultTopics() []string {
	return []string{
		TopicSessionStarted,
		TopicItemAdded,
		TopicItemRemoved,
		TopicTierChanged,
		TopicAddOnToggled,
		TopicQuantityChanged,
		TopicCustomerUpdated,
		TopicCleared,
		TopicSessionEnded,
	}
}
