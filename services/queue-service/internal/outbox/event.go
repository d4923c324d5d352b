package outbox

// Event is the domain event envelope written to the outbox table. The Kafka
// topic name equals EventType (one event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Queue event types published by this service.
const (
	EventItemJoined    = "queue.item.joined.v1"
	EventItemCalled    = "queue.item.called.v1"
	EventItemCompleted = "queue.item.completed.v1"
	EventItemCancelled = "queue.item.cancelled.v1"
)
