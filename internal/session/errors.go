package session

// Error codes carried by controller errors.
const (
	CodeInvalidInput     = "invalid_input"
	CodeNotReady         = "not_ready"
	CodePending          = "operation_pending"
	CodeAlreadyInRoom    = "already_in_room"
	CodeNotInRoom        = "not_in_room"
	CodeAlreadyConnected = "already_connected"
	CodeRoomOperation    = "room_operation_failed"
	CodeConnectionClosed = "connection_closed"
	CodeControllerClosed = "controller_closed"
)

// Controller errors. Match them with errors.Is; wrapped forms add detail.
var (
	// ErrInvalidInput rejects a blank nickname or room id.
	ErrInvalidInput = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	// ErrNotReady is returned for room operations before the connection is Ready.
	ErrNotReady = &Error{Code: CodeNotReady, Message: "connection not ready"}
	// ErrOperationPending is returned while another create or join is in flight.
	ErrOperationPending = &Error{Code: CodePending, Message: "room operation already pending"}
	// ErrAlreadyInRoom is returned when creating or joining from inside a room.
	ErrAlreadyInRoom = &Error{Code: CodeAlreadyInRoom, Message: "already in a room"}
	// ErrNotInRoom is returned when sending outside a room.
	ErrNotInRoom = &Error{Code: CodeNotInRoom, Message: "not in a room"}
	// ErrAlreadyConnected is returned by Initialize while connecting or Ready.
	ErrAlreadyConnected = &Error{Code: CodeAlreadyConnected, Message: "connection already open"}
	// ErrRoomOperation wraps a backend rejection or transport failure of a create or join.
	ErrRoomOperation = &Error{Code: CodeRoomOperation, Message: "room operation failed"}
	// ErrConnectionClosed is returned when the connection went away mid-operation.
	ErrConnectionClosed = &Error{Code: CodeConnectionClosed, Message: "connection closed"}
	// ErrControllerClosed is returned after Close.
	ErrControllerClosed = &Error{Code: CodeControllerClosed, Message: "controller closed"}
)

// Error is a controller failure with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
