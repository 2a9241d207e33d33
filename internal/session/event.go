package session

// EventKind tells observers what changed.
type EventKind int

const (
	// EventState carries a fresh snapshot after any state change.
	EventState EventKind = iota
	// EventNotice carries a user-visible alert.
	EventNotice
)

// NoticeKind classifies user-visible alerts.
type NoticeKind string

const (
	// NoticeConnectionClosed is blocking: the session cannot continue.
	NoticeConnectionClosed NoticeKind = "connection_closed"
	// NoticeRoomOperationFailed is recoverable: the user may retry.
	NoticeRoomOperationFailed NoticeKind = "room_operation_failed"
)

// Notice is an alert the view must surface to the user.
type Notice struct {
	Kind     NoticeKind `json:"kind"`
	Message  string     `json:"message"`
	Blocking bool       `json:"blocking"`
}

// Event is delivered to subscribers.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Notice   *Notice // non-nil for EventNotice
}
