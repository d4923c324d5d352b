package model

import "time"

type Company struct {
	ID   string
	Name string
	// WorkingHours encodes the daily open-close window as "HH:MM-HH:MM".
	WorkingHours string
}

type Service struct {
	ID              string
	CompanyID       string
	Name            string
	DurationMinutes int
}

const (
	QueueTypeWalkIn      = "walk_in"
	QueueTypeProvider    = "provider"
	QueueTypeAppointment = "appointment"
)

const (
	StatusWaiting   = "waiting"
	StatusServing   = "serving"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type QueueItem struct {
	ID            string
	ServiceID     string
	ProviderID    string // empty unless the customer queued for a specific provider
	CustomerName  string
	CustomerPhone string
	CustomerEmail string // optional
	QueueType     string
	Status        string
	// AppointmentDate ("YYYY-MM-DD") and AppointmentTime ("HH:MM") are set
	// iff QueueType is appointment.
	AppointmentDate string
	AppointmentTime string
	JoinedAt        time.Time
	// Seq is the storage-assigned insertion order, used to break JoinedAt ties.
	Seq int64
}

// PartitionKey identifies an independently ordered waiting line. A
// provider-specific line and a walk-in line for the same service never
// contend.
type PartitionKey struct {
	ServiceID  string
	ProviderID string
	QueueType  string
}

func (q QueueItem) Partition() PartitionKey {
	return PartitionKey{ServiceID: q.ServiceID, ProviderID: q.ProviderID, QueueType: q.QueueType}
}

func ValidQueueType(t string) bool {
	return t == QueueTypeWalkIn || t == QueueTypeProvider || t == QueueTypeAppointment
}

func TerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}
