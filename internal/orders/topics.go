package orders

const (
	// All settlement events for one order go to a single topic so a consumer
	// observes them in order.
	TopicOrderSettled = "order.settled"
)

// Partition key = order id, so every event of one order keeps its ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
