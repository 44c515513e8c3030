package events

// Topic constants for domain events emitted by the café backend.
const (
	TopicInvoiceCreated   = "invoice.created"
	TopicPromotionChanged = "promotion.changed"
)

// DefaultTopics returns the topics consumed by the worker.
func DefaultTopics() []string {
	return []string{
		TopicInvoiceCreated,
		TopicPromotionChanged,
	}
}
