package eventbus

import "time"

const (
	TypeScheduleGenerated = "schedule.generated"
	TypePostSent          = "post.sent"
	TypePostFailed        = "post.failed"
)

// ScheduleGenerated is the Data of a TypeScheduleGenerated event.
type ScheduleGenerated struct {
	Mode  string
	Day   time.Time
	Times []time.Time
}

// PostSent is the Data of a TypePostSent event.
type PostSent struct {
	ItemID     int64
	ExternalID string
	PostedAt   time.Time
	// QueueLength and Target describe the rotation that followed the post.
	QueueLength int
	Target      int
	// Next is the next scheduled instant of the current cycle, zero if none.
	Next time.Time
}

// PostFailed is the Data of a TypePostFailed event.
type PostFailed struct {
	ItemID int64
	Status int
	Reason string
	Next   time.Time
}
