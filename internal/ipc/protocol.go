// Package ipc carries newline-delimited JSON commands between a running chat
// session and short-lived CLI invocations over a unix socket.
package ipc

// Commands understood by the chat session.
const (
	CommandStatus = "status"
	CommandQuit   = "quit"
)

// Request is one client command.
type Request struct {
	Command string `json:"command"`
}

// Response is the session's reply to a Request.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failure builds a non-OK response.
func Failure(state string, message string) Response {
	return Response{OK: false, State: state, Error: message}
}
